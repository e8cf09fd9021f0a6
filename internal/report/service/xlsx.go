package service

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	popmodels "civreg/internal/population/models"
)

const (
	PopulationSheet = "Danh sách nhân khẩu"
	HouseholdSheet  = "Danh sách hộ khẩu"
	ComplaintSheet  = "Kiến nghị"

	dateLayout = "02/01/2006"
)

type column struct {
	header string
	width  float64
}

var populationColumns = []column{
	{"Họ và tên", 25},
	{"Ngày sinh", 15},
	{"Tuổi", 10},
	{"Giới tính", 10},
	{"CMND/CCCD", 15},
	{"Mã hộ khẩu", 15},
	{"Số nhà", 15},
}

var householdColumns = []column{
	{"Mã hộ", 15},
	{"Chủ hộ", 25},
	{"Số nhà", 15},
	{"Địa chỉ", 40},
	{"Số thành viên", 15},
}

var complaintColumns = []column{
	{"Mã", 12},
	{"Tiêu đề", 40},
	{"Phân loại", 18},
	{"Trạng thái", 15},
	{"Mức độ", 12},
	{"Số người gửi", 14},
	{"Ngày tạo", 15},
}

func genderLabel(g popmodels.Gender) string {
	switch g {
	case popmodels.GenderMale:
		return "Nam"
	case popmodels.GenderFemale:
		return "Nữ"
	default:
		return "Khác"
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// WritePopulationXLSX renders the population report as a workbook.
func WritePopulationXLSX(w io.Writer, rep *PopulationReport) error {
	rows := make([][]any, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, []any{
			r.FullName,
			r.DateOfBirth.Format(dateLayout),
			r.Age,
			genderLabel(r.Gender),
			orNA(r.IDNumber),
			orNA(r.HouseholdCode),
			orNA(r.HouseNumber),
		})
	}
	return writeSheet(w, PopulationSheet, populationColumns, rows)
}

// WriteHouseholdsXLSX renders the household report as a workbook. The
// address column leaves out the house number, which has its own column.
func WriteHouseholdsXLSX(w io.Writer, rep *HouseholdReport) error {
	rows := make([][]any, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		street := r.Address
		street.HouseNumber = ""
		rows = append(rows, []any{
			r.Code,
			orNA(r.HeadName),
			r.Address.HouseNumber,
			street.String(),
			r.MemberCount,
		})
	}
	return writeSheet(w, HouseholdSheet, householdColumns, rows)
}

// WriteComplaintsXLSX renders the complaint report as a workbook.
func WriteComplaintsXLSX(w io.Writer, rep *ComplaintReport) error {
	rows := make([][]any, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, []any{
			r.Code,
			r.Title,
			string(r.Category),
			string(r.Status),
			string(r.Priority),
			r.Submitters,
			r.CreatedAt.Format(dateLayout),
		})
	}
	return writeSheet(w, ComplaintSheet, complaintColumns, rows)
}

// writeSheet writes one sheet with a bold, filled header row.
func writeSheet(w io.Writer, sheet string, columns []column, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#0066CC"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, col := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetCellValue(sheet, name+"1", col.header); err != nil {
			return fmt.Errorf("set header cell: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, col.width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return fmt.Errorf("convert column number: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("set header style: %w", err)
	}

	for i, row := range rows {
		cell := "A" + strconv.Itoa(i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
