package utils_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

func TestCSVParser_ValidFile(t *testing.T) {
	csvContent := `case_id,package_id,region,amount,business_type,urgency,qualifications,overdue_days
C001,PKG-1,north,"12,500.50",consumer_loan,high,litigation;mediation,95
C002,PKG-1,east,8000,credit_card,,,30`

	parser := utils.NewCSVParser()
	cases, errs := parser.ParseCases(csvContent, "default-pkg")

	require.Empty(t, errs, "Expected no parse errors")
	require.Len(t, cases, 2, "Expected 2 cases")

	first := cases[0]
	assert.Equal(t, "C001", first.ID)
	assert.Equal(t, "PKG-1", first.PackageID)
	assert.Equal(t, "north", first.Region)
	assert.Equal(t, 12500.50, first.Amount)
	assert.Equal(t, "consumer_loan", first.BusinessType)
	assert.Equal(t, models.UrgencyHigh, first.Urgency)
	assert.Equal(t, []string{"litigation", "mediation"}, first.Qualifications)
	assert.Equal(t, 95, first.OverdueDays)
	assert.Equal(t, models.CaseStatusPending, first.Status)

	second := cases[1]
	assert.Equal(t, models.UrgencyMedium, second.Urgency)
	assert.Nil(t, second.Qualifications)
}

func TestCSVParser_ColumnAliases(t *testing.T) {
	csvContent := `Case No,Batch,City,Debt_Amount,Loan_Type,Priority,Debtor
C001,PKG-9,shanghai,¥3000,mortgage,asap,Li Lei`

	parser := utils.NewCSVParser()
	cases, errs := parser.ParseCases(csvContent, "default-pkg")

	require.Empty(t, errs, "Expected no parse errors")
	require.Len(t, cases, 1)

	assert.Equal(t, "C001", cases[0].ID)
	assert.Equal(t, "PKG-9", cases[0].PackageID)
	assert.Equal(t, "shanghai", cases[0].Region)
	assert.Equal(t, float64(3000), cases[0].Amount)
	assert.Equal(t, "mortgage", cases[0].BusinessType)
	assert.Equal(t, models.UrgencyUrgent, cases[0].Urgency)
	assert.Equal(t, "Li Lei", cases[0].DebtorName)
}

func TestCSVParser_DefaultPackageID(t *testing.T) {
	csvContent := `case_id,region,amount,business_type
C001,north,100,consumer_loan`

	cases, errs := utils.NewCSVParser().ParseCases(csvContent, "upload-42")
	require.Empty(t, errs)
	require.Len(t, cases, 1)
	assert.Equal(t, "upload-42", cases[0].PackageID)
}

func TestCSVParser_MissingRequiredColumns(t *testing.T) {
	csvContent := `case_id,region,business_type
C001,north,consumer_loan`

	cases, errs := utils.NewCSVParser().ParseCases(csvContent, "pkg")

	assert.Empty(t, cases, "Expected no valid cases")
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], utils.ErrMissingColumns))
	assert.Contains(t, errs[0].Error(), "amount")
}

func TestCSVParser_EmptyFile(t *testing.T) {
	cases, errs := utils.NewCSVParser().ParseCases("   \n", "pkg")

	assert.Nil(t, cases)
	require.Len(t, errs, 1)
	assert.Equal(t, utils.ErrEmptyCSV, errs[0])
}

func TestCSVParser_InvalidRows(t *testing.T) {
	csvContent := `case_id,region,amount,business_type,urgency
C001,north,100,consumer_loan,low
C002,north,abc,consumer_loan,low
C003,north,-5,consumer_loan,low
C004,north,100,consumer_loan,someday
C001,north,100,consumer_loan,low
,north,100,consumer_loan,low`

	cases, errs := utils.NewCSVParser().ParseCases(csvContent, "pkg")

	require.Len(t, cases, 1, "Only the first row is valid")
	assert.Equal(t, "C001", cases[0].ID)
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0].Error(), "line 3")
	assert.True(t, errors.Is(errs[1], models.ErrNegativeAmount))
	assert.True(t, errors.Is(errs[2], models.ErrInvalidUrgency))
	assert.True(t, errors.Is(errs[3], models.ErrDuplicateID))
	assert.True(t, errors.Is(errs[4], utils.ErrInvalidRowData))
}

func TestCSVParser_AllRowsInvalid(t *testing.T) {
	csvContent := `case_id,region,amount,business_type
C001,north,,consumer_loan`

	cases, errs := utils.NewCSVParser().ParseCases(csvContent, "pkg")

	assert.Nil(t, cases)
	require.Len(t, errs, 2)
	assert.Equal(t, utils.ErrNoDataRows, errs[0])
}

func TestGroupIntoBatches(t *testing.T) {
	cases := []*models.Case{
		{ID: "C1", PackageID: "PKG-B", Region: "north", Amount: 100, BusinessType: "consumer_loan", Urgency: models.UrgencyLow},
		{ID: "C2", PackageID: "PKG-A", Region: "south", Amount: 200, BusinessType: "mortgage", Urgency: models.UrgencyHigh},
		{ID: "C3", PackageID: "PKG-B", Region: "North", Amount: 300, BusinessType: "credit_card", Urgency: models.UrgencyUrgent},
		nil,
	}

	batches := utils.GroupIntoBatches(cases)
	require.Len(t, batches, 2)

	assert.Equal(t, "PKG-A", batches[0].ID)
	assert.Equal(t, 1, batches[0].CaseCount)

	b := batches[1]
	assert.Equal(t, "PKG-B", b.ID)
	assert.Equal(t, 2, b.CaseCount)
	assert.Equal(t, float64(400), b.TotalAmount)
	assert.Equal(t, []string{"north"}, b.Regions)
	assert.Equal(t, []string{"consumer_loan", "credit_card"}, b.BusinessTypes)
	assert.Equal(t, models.UrgencyUrgent, b.Urgency)
	assert.Equal(t, models.BatchStatusDraft, b.Status)
	assert.Equal(t, "C1", b.Cases[0].ID)
	assert.Equal(t, "C3", b.Cases[1].ID)
}

func TestValidateCSVStructure(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		result, err := utils.ValidateCSVStructure("caseid,area,outstanding,business\nC1,north,10,loan\n")
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, 1, result.RowCount)
		assert.Empty(t, result.MissingColumns)
	})

	t.Run("missing columns", func(t *testing.T) {
		result, err := utils.ValidateCSVStructure("case_id,region\nC1,north\n")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, []string{"amount", "business_type"}, result.MissingColumns)
	})

	t.Run("empty", func(t *testing.T) {
		result, err := utils.ValidateCSVStructure("")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Equal(t, []string{"empty file"}, result.Errors)
	})
}
