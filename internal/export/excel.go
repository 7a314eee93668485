// Package export renders lead listings as spreadsheets.
package export

import (
    "fmt"
    "io"
    "time"

    "github.com/xuri/excelize/v2"

    "github.com/iliyamo/solar-crm/internal/leadstatus"
    "github.com/iliyamo/solar-crm/internal/model"
)

// SheetName is the worksheet holding the leads.
const SheetName = "Leads"

// ContentType is the MIME type of the produced workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
    "ID", "Name", "Phone", "Email", "City", "Lead Status", "Stage",
    "Call Status", "Days Overdue", "Next Follow-up", "Last Contact",
    "Priority", "Lead Source", "Monthly Bill", "Created At",
}

// WriteLeads writes leads as an XLSX workbook to w.  Call status is
// recomputed as of now and dates are shown in IST.
func WriteLeads(w io.Writer, leads []model.Lead, now time.Time) error {
    f := excelize.NewFile()
    defer f.Close()

    if err := f.SetSheetName("Sheet1", SheetName); err != nil {
        return fmt.Errorf("failed to name sheet: %w", err)
    }

    headerStyle, err := f.NewStyle(&excelize.Style{
        Font: &excelize.Font{Bold: true},
        Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
    })
    if err != nil {
        return fmt.Errorf("failed to create style: %w", err)
    }

    for i, h := range headers {
        cell, _ := excelize.CoordinatesToCellName(i+1, 1)
        if err := f.SetCellValue(SheetName, cell, h); err != nil {
            return err
        }
        if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
            return err
        }
    }

    for r, l := range leads {
        leadstatus.Apply(&l, now)
        values := []any{
            l.ID, l.Name, l.Phone, l.Email, l.City,
            string(l.LeadStatus), string(l.LeadStatus.Coarse()),
            string(l.CallStatus), l.DaysOverdue,
            istDate(l.NextFollowUpDate), istDate(l.LastContactDate),
            string(l.Priority), l.LeadSource, floatOrBlank(l.MonthlyBill),
            l.CreatedAt.In(leadstatus.IST).Format("2006-01-02 15:04"),
        }
        for c, v := range values {
            cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
            if err := f.SetCellValue(SheetName, cell, v); err != nil {
                return err
            }
        }
    }

    last, _ := excelize.ColumnNumberToName(len(headers))
    if err := f.SetColWidth(SheetName, "A", last, 16); err != nil {
        return err
    }
    if err := f.SetColWidth(SheetName, "B", "B", 28); err != nil {
        return err
    }
    _, err = f.WriteTo(w)
    return err
}

func istDate(t *time.Time) string {
    if t == nil {
        return ""
    }
    return t.In(leadstatus.IST).Format("2006-01-02")
}

func floatOrBlank(f *float64) any {
    if f == nil {
        return ""
    }
    return *f
}
