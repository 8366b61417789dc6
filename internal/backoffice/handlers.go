package backoffice

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/backoffice/internal/action"
	"github.com/roach88/backoffice/internal/page"
	"github.com/roach88/backoffice/internal/record"
)

// Backend resources the handlers write to besides the page's own.
const (
	MemberResource  = "user-list"
	DepositResource = "deposit"
	CombineResource = "combine-task"

	balanceResource = "user-list/bal-update"
	frozenResource  = "user-list/frozen-update"
	kycResource     = "user-list/kyc"
	tasksResource   = "user-list/task-update"
	extendResource  = "user-list/combine-time-extend"
)

// combineEndField holds when a member's combination window closes. The
// spelling is the backend's.
const combineEndField = "combinationEndTine"

// Status values written by the handlers.
const (
	DepositSuccess  = "Success"
	DepositFailed   = "Failed"
	WithdrawApprove = "Approved"
	WithdrawHold    = "Hold"
	WithdrawReject  = "Rejected"
	KYCApproved     = "Approved"
	KYCRejected     = "Rejected"
	CombineComplete = "Complete"
)

// Balance adjustment types of member.adjust-balance.
const (
	AddBalance    = "Addbalance"
	DeductBalance = "Deductbalance"
)

// Builtins returns the handlers every page catalogue may refer to.
func Builtins() []Handler {
	return []Handler{
		{Name: "record.create", OnPage: true, Plan: planCreate},
		{Name: "record.update", Plan: planUpdate},
		{Name: "record.delete", RemovesRecord: true, Plan: planDelete},
		{Name: "deposit.approve", Plan: planDepositApprove},
		{Name: "deposit.reject", Plan: statusOnly(DepositFailed)},
		{Name: "withdraw.approve", Plan: statusOnly(WithdrawApprove)},
		{Name: "withdraw.hold", Plan: statusOnly(WithdrawHold)},
		{Name: "withdraw.reject", Plan: planWithdrawReject},
		{Name: "kyc.approve", Plan: planKYC(KYCApproved, "Verified")},
		{Name: "kyc.reject", Plan: planKYC(KYCRejected, "Unverified")},
		{Name: "member.adjust-balance", Plan: planAdjustBalance},
		{Name: "member.freeze", Plan: planFreeze},
		{Name: "member.update", Plan: planMemberUpdate},
		{Name: "member.reset-tasks", Plan: planResetTasks},
		{Name: "member.extend-combine", Plan: planExtendCombine},
		{Name: "combine.complete", Plan: planCombineComplete},
	}
}

// planCreate posts the declared parameters as a new record. The backend's
// id for it becomes the request's record id.
func planCreate(env Env, pg *page.Page, pa *page.Action, req *action.Request) ([]action.Step, error) {
	body, err := writeBody(pa, req)
	if err != nil {
		return nil, err
	}
	return []action.Step{{
		Name:     "create",
		Mutating: true,
		Run: func(ctx context.Context, req *action.Request) error {
			created, err := env.Client.Collection(pa.Endpoint(pg), pg.IDField).Create(ctx, body)
			if err != nil {
				return err
			}
			if id := createdID(created, pg.IDField); id != "" {
				req.RecordID = id
			}
			for k, v := range body {
				req.Set(k, v)
			}
			return nil
		},
	}}, nil
}

// planUpdate patches the record with the parameters that were given.
func planUpdate(env Env, pg *page.Page, pa *page.Action, req *action.Request) ([]action.Step, error) {
	body, err := writeBody(pa, req)
	if err != nil {
		return nil, err
	}
	return []action.Step{patch(env, "update", pa.Endpoint(pg), pg.IDField, req.RecordID, body)}, nil
}

// planMemberUpdate patches one member sub-resource ("user-list/vip-update")
// keyed by the member's email, phone or username.
func planMemberUpdate(env Env, pg *page.Page, pa *page.Action, req *action.Request) ([]action.Step, error) {
	if pa.Resource == "" {
		return nil, fmt.Errorf("action %s: member.update needs a resource", pa.Name)
	}
	body, err := writeBody(pa, req)
	if err != nil {
		return nil, err
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}
	return []action.Step{patch(env, "update-member", pa.Resource, "", key, body)}, nil
}

// planResetTasks zeroes the member's task count and bumps the reset count.
func planResetTasks(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}
	resets := amountOf(req.Record, "resetCount").IntPart() + 1
	body := map[string]any{"taskCount": 0, "resetCount": resets}
	return []action.Step{patch(env, "reset-tasks", tasksResource, "", key, body)}, nil
}

// planExtendCombine pushes the member's combination deadline back by the
// "duration" parameter. A member without a deadline is extended from now.
func planExtendCombine(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	d, err := time.ParseDuration(req.Param("duration"))
	if err != nil || d <= 0 {
		return nil, action.Invalid("duration", "must be a positive duration such as 1h30m, got %q", req.Param("duration"))
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}
	base := env.now()
	if v, ok := req.Record.Lookup(combineEndField); ok {
		if ts, ok := record.Time(v); ok {
			base = ts
		}
	}
	body := map[string]any{combineEndField: base.Add(d).UTC().Format(time.RFC3339)}
	return []action.Step{patch(env, "extend-combine", extendResource, "", key, body)}, nil
}

func planDelete(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	return []action.Step{{
		Name:     "delete",
		Mutating: true,
		Run: func(ctx context.Context, req *action.Request) error {
			return env.Client.Collection(pg.Resource, pg.IDField).Remove(ctx, req.RecordID)
		},
	}}, nil
}

// statusOnly patches the record's status with operator and audit time.
func statusOnly(status string) PlanFunc {
	return func(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
		return []action.Step{setStatus(env, pg, status)}, nil
	}
}

func setStatus(env Env, pg *page.Page, status string) action.Step {
	return action.Step{
		Name:     "update-status",
		Mutating: true,
		Run: func(ctx context.Context, req *action.Request) error {
			body := map[string]any{
				"status":    status,
				"operator":  env.Operator,
				"auditTime": env.stamp(),
			}
			if _, err := env.Client.Collection(pg.Resource, pg.IDField).Update(ctx, req.RecordID, body); err != nil {
				return err
			}
			for k, v := range body {
				req.Set(k, v)
			}
			return nil
		},
	}
}

// planDepositApprove credits the deposit to the member after marking it
// successful.
func planDepositApprove(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	amount, err := positive(req.Record, "amount")
	if err != nil {
		return nil, err
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}

	var member record.Record
	return []action.Step{
		fetchMember(env, key, &member),
		setStatus(env, pg, DepositSuccess),
		updateBalance(env, key, "credit-balance", func() (map[string]any, error) {
			return map[string]any{
				"totalBal":     Money(amountOf(member, "totalBal").Add(amount)),
				"totalDeposit": Money(amountOf(member, "totalDeposit").Add(amount)),
			}, nil
		}),
	}, nil
}

// planWithdrawReject refunds the withdrawn cash before marking the
// withdrawal rejected.
func planWithdrawReject(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	cash, err := positive(req.Record, "cashWithdraw")
	if err != nil {
		return nil, err
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}

	var member record.Record
	return []action.Step{
		fetchMember(env, key, &member),
		updateBalance(env, key, "refund-balance", func() (map[string]any, error) {
			return map[string]any{
				"totalBal":      Money(amountOf(member, "totalBal").Add(cash)),
				"totalWithdraw": Money(amountOf(member, "totalWithdraw").Sub(cash)),
			}, nil
		}),
		setStatus(env, pg, WithdrawReject),
	}, nil
}

// planKYC updates the submission and then the member's verification flag.
// Both endpoints are keyed by username.
func planKYC(status, verified string) PlanFunc {
	return func(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
		username, _ := req.Record.Text("username")
		username = strings.TrimSpace(username)
		if username == "" {
			return nil, action.Invalid("username", "KYC record has no username")
		}
		return []action.Step{
			{
				Name:     "update-status",
				Mutating: true,
				Run: func(ctx context.Context, req *action.Request) error {
					if _, err := env.Client.Collection(pg.Resource, pg.IDField).Update(ctx, username, map[string]any{"status": status}); err != nil {
						return err
					}
					req.Set("status", status)
					return nil
				},
			},
			{
				Name:     "update-member",
				Mutating: true,
				Run: func(ctx context.Context, req *action.Request) error {
					_, err := env.Client.Collection(kycResource, "").Update(ctx, username, map[string]any{"isVerify": verified})
					return err
				},
			},
		}, nil
	}
}

// planAdjustBalance writes a deposit record for the adjustment and then
// moves the member balance.
func planAdjustBalance(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	amount, ok := record.ParseNumber(req.Param("amount"))
	if !ok || !amount.IsPositive() {
		return nil, action.Invalid("amount", "must be a positive number, got %q", req.Param("amount"))
	}
	kind := req.Param("type")
	if kind != AddBalance && kind != DeductBalance {
		return nil, action.Invalid("type", "must be %s or %s", AddBalance, DeductBalance)
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}

	var member record.Record
	fetch := fetchMember(env, key, &member)
	check := fetch.Run
	fetch.Run = func(ctx context.Context, req *action.Request) error {
		if err := check(ctx, req); err != nil {
			return err
		}
		if kind == DeductBalance && amountOf(member, "totalBal").LessThan(amount) {
			return fmt.Errorf("insufficient balance: %s < %s", amountOf(member, "totalBal"), amount)
		}
		return nil
	}

	return []action.Step{
		fetch,
		{
			Name:     "record-deposit",
			Mutating: true,
			Run: func(ctx context.Context, req *action.Request) error {
				username, _ := member.Text("username")
				deposit := map[string]any{
					"username":    username,
					"amount":      Money(amount),
					"depositType": kind,
					"status":      DepositSuccess,
					"depositTime": env.stamp(),
					"operator":    env.Operator,
				}
				_, err := env.Client.Collection(DepositResource, "").Create(ctx, deposit)
				return err
			},
		},
		updateBalance(env, key, "update-balance", func() (map[string]any, error) {
			bal := amountOf(member, "totalBal")
			dep := amountOf(member, "totalDeposit")
			if kind == DeductBalance {
				bal = bal.Sub(amount)
			} else {
				bal = bal.Add(amount)
				dep = dep.Add(amount)
			}
			return map[string]any{"totalBal": Money(bal), "totalDeposit": Money(dep)}, nil
		}),
	}, nil
}

func planFreeze(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}
	frozen := truthy(req.Record["frozenStatus"])
	return []action.Step{{
		Name:     "toggle-frozen",
		Mutating: true,
		Run: func(ctx context.Context, req *action.Request) error {
			if _, err := env.Client.Collection(frozenResource, "").Update(ctx, key, map[string]any{"frozenStatus": !frozen}); err != nil {
				return err
			}
			req.Set("frozenStatus", !frozen)
			return nil
		},
	}}, nil
}

// planCombineComplete closes a combination task and credits its last
// cumulative amount (or its price when no sums were recorded).
func planCombineComplete(env Env, pg *page.Page, _ *page.Action, req *action.Request) ([]action.Step, error) {
	credit, ok := lastSum(req.Record)
	if !ok {
		var err error
		if credit, err = positive(req.Record, "price"); err != nil {
			return nil, err
		}
	}
	key, err := MemberKey(req.Record)
	if err != nil {
		return nil, err
	}

	var member record.Record
	return []action.Step{
		fetchMember(env, key, &member),
		{
			Name:     "update-status",
			Mutating: true,
			Run: func(ctx context.Context, req *action.Request) error {
				if _, err := env.Client.Collection(pg.Resource, pg.IDField).Update(ctx, req.RecordID, map[string]any{"status": CombineComplete}); err != nil {
					return err
				}
				req.Set("status", CombineComplete)
				return nil
			},
		},
		updateBalance(env, key, "credit-balance", func() (map[string]any, error) {
			return map[string]any{"totalBal": Money(amountOf(member, "totalBal").Add(credit))}, nil
		}),
	}, nil
}

func patch(env Env, name, resource, idField, key string, body map[string]any) action.Step {
	return action.Step{
		Name:     name,
		Mutating: true,
		Run: func(ctx context.Context, req *action.Request) error {
			if _, err := env.Client.Collection(resource, idField).Update(ctx, key, body); err != nil {
				return err
			}
			for k, v := range body {
				req.Set(k, v)
			}
			return nil
		},
	}
}

// writeBody is the body of a generic write: the declared parameters that
// were given, converted to their declared types.
func writeBody(pa *page.Action, req *action.Request) (map[string]any, error) {
	body, err := pa.Body(req.Params)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		names := make([]string, len(pa.Params))
		for i, p := range pa.Params {
			names[i] = p.Name
		}
		return nil, action.Invalid("param", "nothing to write (params: %s)", strings.Join(names, ", "))
	}
	return body, nil
}

// createdID reads the new record's id from a create response, which is
// either the record itself or an insert acknowledgement.
func createdID(resp record.Record, idField string) string {
	if id := resp.ID(idField); id != "" {
		return id
	}
	id, _ := resp.Text("insertedId")
	return strings.TrimSpace(id)
}

func fetchMember(env Env, key string, dst *record.Record) action.Step {
	return action.Step{
		Name: "fetch-member",
		Run: func(ctx context.Context, _ *action.Request) error {
			m, err := env.Client.Collection(MemberResource, "").Get(ctx, key)
			if err != nil {
				return err
			}
			*dst = m
			return nil
		},
	}
}

func updateBalance(env Env, key, name string, body func() (map[string]any, error)) action.Step {
	return action.Step{
		Name:     name,
		Mutating: true,
		Run: func(ctx context.Context, _ *action.Request) error {
			b, err := body()
			if err != nil {
				return err
			}
			_, err = env.Client.Collection(balanceResource, "").Update(ctx, key, b)
			return err
		},
	}
}

// MemberKey picks the key member endpoints accept for r: email, then phone,
// then username.
func MemberKey(r record.Record) (string, error) {
	for _, field := range []string{"email", "phone", "username"} {
		if v, ok := r.Text(field); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", action.Invalid("email", "record has no email, phone or username")
}

// Money renders an amount as a JSON number with at most two decimals.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.Round(2).String())
}

// amountOf reads a numeric field, treating a missing or malformed one as 0.
func amountOf(r record.Record, field string) decimal.Decimal {
	v, ok := r.Lookup(field)
	if !ok {
		return decimal.Zero
	}
	d, ok := record.Number(v)
	if !ok {
		return decimal.Zero
	}
	return d
}

func positive(r record.Record, field string) (decimal.Decimal, error) {
	v, ok := r.Lookup(field)
	if !ok {
		return decimal.Zero, action.Invalid(field, "missing")
	}
	d, ok := record.Number(v)
	if !ok || !d.IsPositive() {
		return decimal.Zero, action.Invalid(field, "must be a positive number, got %v", v)
	}
	return d, nil
}

func lastSum(r record.Record) (decimal.Decimal, bool) {
	v, ok := r.Lookup("amountSums")
	if !ok {
		return decimal.Zero, false
	}
	sums, ok := v.([]any)
	if !ok || len(sums) == 0 {
		return decimal.Zero, false
	}
	d, ok := record.Number(sums[len(sums)-1])
	if !ok || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	default:
		return false
	}
}
