package compiler

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
	"github.com/roach88/backoffice/internal/view"
)

var builtinHandlers = handlerNames{
	"record.create", "record.update", "record.delete",
	"deposit.approve", "deposit.reject",
	"withdraw.approve", "withdraw.hold", "withdraw.reject",
	"kyc.approve", "kyc.reject",
	"member.adjust-balance", "member.freeze",
	"member.update", "member.reset-tasks", "member.extend-combine",
	"combine.complete",
}

func TestLoadFSDefaults(t *testing.T) {
	cat, err := LoadFS(page.Defaults(), builtinHandlers)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"admins", "announcements", "combine_history", "deposit_agents", "deposits",
		"kyc", "members", "promo_codes", "tasks", "vip_levels", "withdrawals",
	}, cat.Names())

	deposits, err := cat.Get("deposits")
	require.NoError(t, err)
	assert.Equal(t, 25, deposits.PageSize)
	assert.Equal(t, view.SortSpec{Field: "depositTime", Desc: true}, deposits.Sort)
	assert.Equal(t, []string{"approve", "reject"}, deposits.ActionNames())
	assert.True(t, deposits.Fields["status"].Fold)

	withdrawals, err := cat.Get("withdrawals")
	require.NoError(t, err)
	assert.Equal(t, "id", withdrawals.IDField)

	admins, err := cat.Get("admins")
	require.NoError(t, err)
	assert.False(t, admins.Scope.Keep(record.Record{"role": "superAdmin"}))
	assert.True(t, admins.Scope.Keep(record.Record{"role": "Admin"}))

	history, err := cat.Get("combine_history")
	require.NoError(t, err)
	assert.False(t, history.Scope.Keep(record.Record{"price": 10}))
	assert.True(t, history.Scope.Keep(record.Record{"targetTask": 3}))

	members, err := cat.Get("members")
	require.NoError(t, err)
	adjust, ok := members.Action("adjust-balance")
	require.True(t, ok)
	typ, ok := adjust.Param("type")
	require.True(t, ok)
	assert.Equal(t, []string{"Addbalance", "Deductbalance"}, typ.Options)
}

func TestLoadFSUnknownHandler(t *testing.T) {
	_, err := LoadFS(page.Defaults(), handlerNames{"record.delete"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnknownHandler)
	assert.Contains(t, err.Error(), "deposit.approve")
}

func TestLoadFSSchemaViolation(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.cue": {Data: []byte(`
page: bad: {
	title:    "Bad"
	resource: "bad"
	colums: [{field: "a"}]
}
`)},
	}
	_, err := LoadFS(fsys, nil)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeBuildFailed, le.Code)
}

func TestLoadFSBadKind(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.cue": {Data: []byte(`
page: bad: {
	title:    "Bad"
	resource: "bad"
	columns: [{field: "a"}]
	fields: a: {kind: "like"}
}
`)},
	}
	_, err := LoadFS(fsys, nil)
	require.Error(t, err)
}

func TestLoadFSBadTarget(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.cue": {Data: []byte(`
page: bad: {
	title:    "Bad"
	resource: "bad"
	columns: [{field: "a"}]
	actions: add: {handler: "record.create", target: "everywhere"}
}
`)},
	}
	_, err := LoadFS(fsys, nil)
	require.Error(t, err)
}

func TestLoadFSEmpty(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{}, nil)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNoFiles, le.Code)
}

func TestLoadDirNotFound(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"), nil)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	src := `package pages

page: deposits: {
	title:     "Deposits (custom)"
	resource:  "deposit"
	page_size: 50
	columns: [{field: "username"}, {field: "amount"}]
}

page: signup_bonus: {
	title:    "Signup Bonus"
	resource: "signup-bonus"
	columns: [{field: "amount"}]
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages.cue"), []byte(src), 0o644))

	cat, err := Load(dir, builtinHandlers)
	require.NoError(t, err)

	deposits, err := cat.Get("deposits")
	require.NoError(t, err)
	assert.Equal(t, "Deposits (custom)", deposits.Title)
	assert.Equal(t, 50, deposits.PageSize)
	assert.Empty(t, deposits.Actions)

	_, err = cat.Get("signup_bonus")
	assert.NoError(t, err)
	_, err = cat.Get("withdrawals")
	assert.NoError(t, err, "untouched defaults survive")
	assert.Equal(t, 12, cat.Len())
}

func TestLoadWithoutDir(t *testing.T) {
	cat, err := Load("", builtinHandlers)
	require.NoError(t, err)
	assert.Equal(t, 11, cat.Len())
}
