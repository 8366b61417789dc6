package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/filter"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/view"
)

// compileWithSchema unifies src with the page schema the way the loaders
// do and compiles page.<name>.
func compileWithSchema(t *testing.T, src, name string) (*page.Page, error) {
	t.Helper()
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	require.NoError(t, schema.Err())
	v := schema.Unify(ctx.CompileString(src))
	return CompilePage(v.LookupPath(cue.ParsePath("page." + name)))
}

func TestCompilePageBasic(t *testing.T) {
	p, err := compileWithSchema(t, `
		page: deposits: {
			title:     "Deposit Record"
			resource:  "deposit"
			page_size: 25
			sort:      "-depositTime"
			columns: [
				{field: "username", label: "Username"},
				{field: "amount"},
			]
			fields: {
				username: {kind: "contains"}
				status: {kind: "equals", fold: true}
				amount: {kind: "range", type: "number", label: "Amount"}
			}
			actions: approve: {
				handler:      "deposit.approve"
				label:        "Approve"
				destructive:  true
				status_field: "status"
				terminal: ["Success", "Failed"]
				dialog: title: "Approve this deposit?"
			}
		}
	`, "deposits")
	require.NoError(t, err)

	assert.Equal(t, "deposits", p.Name)
	assert.Equal(t, "Deposit Record", p.Title)
	assert.Equal(t, "deposit", p.Resource)
	assert.Equal(t, "_id", p.IDField, "schema default")
	assert.Equal(t, 25, p.PageSize)
	assert.Equal(t, view.SortSpec{Field: "depositTime", Desc: true}, p.Sort)
	assert.Equal(t, []page.Column{
		{Field: "username", Label: "Username"},
		{Field: "amount", Label: "amount"},
	}, p.Columns)
	assert.Equal(t, filter.Field{Kind: filter.KindRange, Type: filter.TypeNumber, Label: "Amount"}, p.Fields["amount"])
	assert.Equal(t, filter.Field{Kind: filter.KindEquals, Fold: true}, p.Fields["status"])
	assert.False(t, p.Fields["username"].Fold)

	require.Len(t, p.Actions, 1)
	a := p.Actions[0]
	assert.Equal(t, "approve", a.Name)
	assert.Equal(t, "deposit.approve", a.Handler)
	assert.True(t, a.Destructive)
	assert.Equal(t, []string{"Success", "Failed"}, a.Terminal)
	assert.Equal(t, action.Dialog{Title: "Approve this deposit?", Confirm: "Yes", Cancel: "No"}, a.Dialog)
}

func TestCompilePageDefaults(t *testing.T) {
	p, err := compileWithSchema(t, `
		page: promo: {
			title:    "Promo"
			resource: "promo-code"
			columns: [{field: "code"}]
			actions: "adjust-balance": {
				handler: "member.adjust-balance"
				params: {
					amount: {}
					note: {required: false, label: "Note"}
				}
			}
		}
	`, "promo")
	require.NoError(t, err)

	assert.Equal(t, 10, p.PageSize)
	assert.True(t, p.Sort.None())
	require.Len(t, p.Actions, 1)
	a := p.Actions[0]
	assert.Equal(t, "adjust-balance", a.Name)
	assert.Equal(t, "adjust-balance", a.Label)
	assert.False(t, a.Destructive)
	assert.Equal(t, "adjust-balance?", a.Dialog.Title)
	assert.Equal(t, []page.Param{
		{Name: "amount", Label: "amount", Required: true},
		{Name: "note", Label: "Note", Required: false},
	}, a.Params)
}

func TestCompilePageMissingTitle(t *testing.T) {
	_, err := compileWithSchema(t, `
		page: bad: {
			resource: "x"
			columns: [{field: "a"}]
		}
	`, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")
	assert.Contains(t, err.Error(), "required")
}

func TestCompilePageMissingColumns(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		page: bare: {
			title:    "Bare"
			resource: "x"
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompilePage(v.LookupPath(cue.ParsePath("page.bare")))
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "columns", ce.Field)
}

func TestCompilePageTargetsAndParamTypes(t *testing.T) {
	p, err := compileWithSchema(t, `
		page: members: {
			title:    "Members"
			resource: "user-list"
			columns: [{field: "email"}]
			actions: {
				add: {
					handler: "record.create"
					target:  "page"
					params: {
						email: {}
						vip: {type: "number", required: false}
					}
				}
				vip: {
					handler:  "member.update"
					resource: "user-list/vip-update"
					params: vipLevel: {}
				}
			}
		}
	`, "members")
	require.NoError(t, err)
	require.Len(t, p.Actions, 2)

	add := p.Actions[0]
	assert.True(t, add.OnPage())
	assert.Equal(t, []page.Param{
		{Name: "email", Label: "email", Required: true},
		{Name: "vip", Label: "vip", Type: page.ParamNumber},
	}, add.Params)

	vip := p.Actions[1]
	assert.False(t, vip.OnPage())
	assert.Equal(t, "user-list/vip-update", vip.Resource)
}

func TestCompilePageWithoutSchemaUsesGoDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		page: plain: {
			title:    "Plain"
			resource: "plain"
			columns: [{field: "a"}]
		}
	`)
	p, err := CompilePage(v.LookupPath(cue.ParsePath("page.plain")))
	require.NoError(t, err)
	assert.Equal(t, "_id", p.IDField)
	assert.Equal(t, view.DefaultPageSize, p.PageSize)
	assert.Equal(t, "a", p.Columns[0].Label)
}

func TestCompilePageScope(t *testing.T) {
	p, err := compileWithSchema(t, `
		page: admins: {
			title:    "Admins"
			resource: "admin-list"
			columns: [{field: "email"}]
			scope: {
				require: ["email"]
				exclude: role: ["superAdmin"]
			}
		}
	`, "admins")
	require.NoError(t, err)
	assert.Equal(t, page.Scope{
		Require: []string{"email"},
		Exclude: map[string][]string{"role": {"superAdmin"}},
	}, p.Scope)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "title", Message: "title is required"}
	assert.Equal(t, "title: title is required", err.Error())
}
