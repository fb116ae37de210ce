package journals

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithLineIDsAssignsStoredKeys(t *testing.T) {
	lines := []JournalLine{
		{EntryID: 7, LineNo: 1, AccountCode: "6500", Debit: 1000},
		{EntryID: 7, LineNo: 2, AccountCode: "1590", Credit: 1000},
	}
	out, err := withLineIDs(lines, map[int]int64{1: 501, 2: 502})
	require.NoError(t, err)
	require.Equal(t, int64(501), out[0].ID)
	require.Equal(t, int64(502), out[1].ID)
	require.Equal(t, "1590", out[1].AccountCode)

	_, err = withLineIDs([]JournalLine{{EntryID: 7, LineNo: 3}}, map[int]int64{1: 501})
	require.ErrorContains(t, err, "line 3 not stored")
}
