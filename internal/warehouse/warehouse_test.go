package warehouse

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crmsms/internal/models"
)

func TestQueryMaterializesTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	wh := NewDB(db, "mysql", zap.NewNop())

	rows := sqlmock.NewRows([]string{"store_code", "shop_name", "member_cnt", "purchaser_only_cnt", "total_cnt"}).
		AddRow("001", "Gangnam", "100", "20", "120").
		AddRow("002", nil, "50", "10", "60")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.store_code")).
		WithArgs("X").
		WillReturnRows(rows)

	table, err := wh.Query(context.Background(), "SELECT s.store_code FROM shops s WHERE brd = ?", []any{"X"})
	require.NoError(t, err)
	assert.Equal(t, []string{"store_code", "shop_name", "member_cnt", "purchaser_only_cnt", "total_cnt"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"001", "Gangnam", "100", "20", "120"}, table.Rows[0])
	// NULL cells come back as empty strings.
	assert.Equal(t, "", table.Rows[1][1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryEmptyResultIsNotAnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	wh := NewDB(db, "mysql", zap.NewNop())
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"cid"}))

	table, err := wh.Query(context.Background(), "SELECT cid FROM x", nil)
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, []string{"cid"}, table.Columns)
}

func TestQueryFailureWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	wh := NewDB(db, "mysql", zap.NewNop())
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("authentication failed"))

	_, err = wh.Query(context.Background(), "SELECT 1", nil)
	var qerr *models.QueryServiceError
	require.ErrorAs(t, err, &qerr)
	assert.Contains(t, qerr.Error(), "authentication failed")
}

func TestReboundPostgresPlaceholders(t *testing.T) {
	d := &DB{driver: "postgres"}
	got := d.rebound("SELECT 'a?b', x FROM t WHERE y = ? AND z IN (?,?)")
	assert.Equal(t, "SELECT 'a?b', x FROM t WHERE y = $1 AND z IN ($2,$3)", got)

	d = &DB{driver: "mysql"}
	assert.Equal(t, "WHERE y = ?", d.rebound("WHERE y = ?"))
}

func TestNormalizeDSN(t *testing.T) {
	driver, out, err := normalizeDSN("mariadb://user:pw@db.internal:3306/crm")
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "user:pw@tcp(db.internal:3306)/crm?parseTime=true", out)

	driver, out, err = normalizeDSN("postgres://user:pw@db.internal:5432/crm?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "postgres", driver)
	assert.Equal(t, "postgres://user:pw@db.internal:5432/crm?sslmode=disable", out)

	_, _, err = normalizeDSN("mysql://db.internal:3306/crm")
	assert.Error(t, err, "user is required in URL form")

	driver, out, err = normalizeDSN("user:pw@tcp(127.0.0.1:3306)/crm")
	require.NoError(t, err)
	assert.Equal(t, "mysql", driver)
	assert.Equal(t, "user:pw@tcp(127.0.0.1:3306)/crm", out)
}
