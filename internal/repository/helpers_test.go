package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/solar-crm/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func nullTime(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) driver.Value {
	if f == nil {
		return nil
	}
	return *f
}

// leadRows renders leads in leadColumnNames order.
func leadRows(leads ...model.Lead) *sqlmock.Rows {
	rows := sqlmock.NewRows(leadColumnNames)
	for _, l := range leads {
		rows.AddRow(
			l.ID, l.OrgID, l.CreatedByID,
			l.Name, l.Email, l.Phone, l.AltPhone, l.Company,
			l.Address, l.City, l.State, l.Pincode,
			nullFloat(l.RoofArea), nullFloat(l.MonthlyBill), nullFloat(l.EnergyRequirement), l.RoofType, l.PropertyType,
			l.LeadSource, l.Budget, l.Timeline, string(l.Priority), l.Notes,
			l.PreferredContactTime, l.PreferredContactMethod,
			string(l.LeadStatus), string(l.CallStatus),
			nullTime(l.SiteVisitDate), l.FormSubmissionDate, nullTime(l.LastContactDate), nullTime(l.NextFollowUpDate),
			l.CreatedAt, l.UpdatedAt,
		)
	}
	return rows
}

func sampleLead(id uint64, org string, owner uint64) model.Lead {
	created := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	return model.Lead{
		ID:                 id,
		OrgID:              org,
		CreatedByID:        owner,
		Name:               "Ravi Kumar",
		Phone:              "+919876543210",
		City:               "Pune",
		Priority:           model.PriorityMedium,
		LeadStatus:         model.LeadStatusNew,
		FormSubmissionDate: created,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
}
