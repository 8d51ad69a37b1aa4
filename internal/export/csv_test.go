package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmsms/internal/models"
)

func TestWriteStoresHasBOMAndHeader(t *testing.T) {
	var buf bytes.Buffer
	err := WriteStores(&buf, []models.StoreRow{
		{StoreCode: "001", ShopName: "Gangnam", MemberCount: 100, PurchaserOnlyCount: 20, TotalCount: 120},
	})
	require.NoError(t, err)

	out := buf.Bytes()
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3], "spreadsheet tools need the BOM")
	lines := strings.Split(strings.TrimSpace(string(out[3:])), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "store_code,shop_name,member_cnt,purchaser_only_cnt,total_cnt", lines[0])
	assert.Equal(t, "001,Gangnam,100,20,120", lines[1])
}

func TestStoresRoundTrip(t *testing.T) {
	rows := []models.StoreRow{
		{StoreCode: "001", ShopName: "Gangnam", MemberCount: 100, PurchaserOnlyCount: 20, TotalCount: 120},
		{StoreCode: "002", ShopName: "Daegu, South", MemberCount: 50, PurchaserOnlyCount: 10, TotalCount: 60},
		{StoreCode: "003", ShopName: "unmapped", MemberCount: 0, PurchaserOnlyCount: 0, TotalCount: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStores(&buf, rows))

	back, err := ReadStores(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, back)
}

func TestReadStoresWithoutBOM(t *testing.T) {
	in := "store_code,shop_name,member_cnt,purchaser_only_cnt,total_cnt\n001,Gangnam,1,2,3\n"
	rows, err := ReadStores(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "001", rows[0].StoreCode)
}

func TestReadStoresRejectsWrongHeader(t *testing.T) {
	_, err := ReadStores(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)

	_, err = ReadStores(strings.NewReader("store_code,shop_name,member_cnt,purchaser_only_cnt,grand_total\n"))
	assert.Error(t, err)

	_, err = ReadStores(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadStoresRejectsBadCounts(t *testing.T) {
	const header = "store_code,shop_name,member_cnt,purchaser_only_cnt,total_cnt\n"

	cases := []struct {
		name string
		line string
	}{
		{"non-numeric", "001,Gangnam,many,2,3"},
		{"negative member count", "001,Gangnam,-50,20,999"},
		{"negative purchaser count", "001,Gangnam,50,-20,30"},
		{"negative total", "001,Gangnam,0,0,-1"},
		{"total not the sum", "001,Gangnam,100,20,999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadStores(strings.NewReader(header + tc.line + "\n"))
			assert.Error(t, err)
		})
	}

	// A consistent row still parses.
	rows, err := ReadStores(strings.NewReader(header + "001,Gangnam,100,20,120\n"))
	require.NoError(t, err)
	assert.Equal(t, 120, rows[0].TotalCount)
}

func TestWriteCIDs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCIDs(&buf, []string{"C1001", "C1002"}))

	out := buf.Bytes()
	assert.Equal(t, []byte{0xEF, 0xBB, 0xBF}, out[:3])
	assert.Equal(t, "cid\nC1001\nC1002\n", string(out[3:]))
}
