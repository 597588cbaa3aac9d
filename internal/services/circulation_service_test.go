package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-library-backend/internal/domain"
	"github.com/tbourn/go-library-backend/internal/notify"
	"github.com/tbourn/go-library-backend/internal/repo"
)

func TestCheckout_HappyPath(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "The Go Programming Language")
	cp := seedCopy(t, db, item.ID, branch.ID, "tag-001")
	member := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	res, err := svc.Checkout(ctx, member.MemberCode, []string{"tag-001"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !res.AllOK() {
		t.Fatalf("expected all outcomes ok: %+v", res.Outcomes)
	}
	out := res.Outcomes[0]
	if out.Tag != "TAG-001" {
		t.Fatalf("outcome tag = %q, want normalized TAG-001", out.Tag)
	}
	if out.Loan == nil || out.Loan.CopyID != cp.ID {
		t.Fatalf("unexpected loan: %+v", out.Loan)
	}
	if out.Loan.RenewalsLeft != DefaultRenewalCap {
		t.Fatalf("renewals_left = %d, want %d", out.Loan.RenewalsLeft, DefaultRenewalCap)
	}
	wantDue := out.Loan.BorrowedAt.Add(DefaultLoanPeriod)
	if !out.Loan.DueDate.Equal(wantDue) {
		t.Fatalf("due date = %v, want %v", out.Loan.DueDate, wantDue)
	}

	if got := copyStatus(t, db, cp.ID); got != domain.CopyBorrowed {
		t.Fatalf("copy status = %q, want borrowed", got)
	}
	if total, avail := itemCounters(t, db, item.ID); total != 1 || avail != 0 {
		t.Fatalf("counters = (%d,%d), want (1,0)", total, avail)
	}

	// Exactly one borrow journal entry.
	var n int64
	if err := db.Model(&domain.Transaction{}).
		Where("member_id = ? AND type = ?", member.ID, domain.TransactionBorrow).
		Count(&n).Error; err != nil {
		t.Fatalf("count journal: %v", err)
	}
	if n != 1 {
		t.Fatalf("journal entries = %d, want 1", n)
	}
}

func TestCheckout_EmptyTagList(t *testing.T) {
	db := newServiceDB(t)

	svc := NewCirculationService(db, nil)
	if _, err := svc.Checkout(context.Background(), "MEM1001", nil); !errors.Is(err, ErrEmptyTagList) {
		t.Fatalf("got %v, want ErrEmptyTagList", err)
	}
}

func TestCheckout_MemberGate(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := NewCirculationService(db, nil)

	if _, err := svc.Checkout(ctx, "MEM9999", []string{"t"}); !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("unknown code: got %v, want ErrMemberNotFound", err)
	}

	pending := seedMember(t, db, domain.MemberPending)
	if _, err := svc.Checkout(ctx, pending.MemberCode, []string{"t"}); !errors.Is(err, ErrMemberNotApproved) {
		t.Fatalf("pending member: got %v, want ErrMemberNotApproved", err)
	}

	blocked := seedMember(t, db, domain.MemberBlocked)
	if _, err := svc.Checkout(ctx, blocked.MemberCode, []string{"t"}); !errors.Is(err, ErrMemberNotApproved) {
		t.Fatalf("blocked member: got %v, want ErrMemberNotApproved", err)
	}
}

func TestCheckout_PerTagFailuresDoNotAbortBatch(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Item A")
	other := seedItem(t, db, "Item B")
	seedCopy(t, db, item.ID, branch.ID, "OK-1")
	taken := seedCopy(t, db, other.ID, branch.ID, "TAKEN-1")
	member := seedMember(t, db, domain.MemberApproved)
	rival := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	if res, err := svc.Checkout(ctx, rival.MemberCode, []string{"TAKEN-1"}); err != nil || !res.AllOK() {
		t.Fatalf("rival checkout: res=%+v err=%v", res, err)
	}

	res, err := svc.Checkout(ctx, member.MemberCode, []string{"OK-1", "TAKEN-1", "MISSING-1"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.AllOK() {
		t.Fatal("expected mixed outcomes")
	}
	if len(res.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(res.Outcomes))
	}
	if res.Outcomes[0].Err != nil {
		t.Fatalf("OK-1 failed: %v", res.Outcomes[0].Err)
	}
	if !errors.Is(res.Outcomes[1].Err, ErrCopyNotAvailable) {
		t.Fatalf("TAKEN-1: got %v, want ErrCopyNotAvailable", res.Outcomes[1].Err)
	}
	if !errors.Is(res.Outcomes[2].Err, ErrCopyNotFound) {
		t.Fatalf("MISSING-1: got %v, want ErrCopyNotFound", res.Outcomes[2].Err)
	}

	// The failed tags left no partial writes behind.
	if _, err := repo.GetOpenLoanByCopy(ctx, db, taken.ID); err != nil {
		t.Fatalf("rival's loan should survive: %v", err)
	}
	if total, avail := itemCounters(t, db, item.ID); total != 1 || avail != 0 {
		t.Fatalf("item A counters = (%d,%d), want (1,0)", total, avail)
	}
}

func TestCheckout_SameItemTwiceDenied(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Duplicated Item")
	seedCopy(t, db, item.ID, branch.ID, "C-1")
	seedCopy(t, db, item.ID, branch.ID, "C-2")
	member := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	res, err := svc.Checkout(ctx, member.MemberCode, []string{"C-1", "C-2"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if res.Outcomes[0].Err != nil {
		t.Fatalf("first copy: %v", res.Outcomes[0].Err)
	}
	if !errors.Is(res.Outcomes[1].Err, ErrAlreadyBorrowed) {
		t.Fatalf("second copy of same item: got %v, want ErrAlreadyBorrowed", res.Outcomes[1].Err)
	}
	if got := copyStatus(t, db, res.Outcomes[0].Loan.CopyID); got != domain.CopyBorrowed {
		t.Fatalf("first copy status = %q", got)
	}
}

func TestCheckout_ConsumesMembersReservation(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Reserved Item")
	member := seedMember(t, db, domain.MemberApproved)

	// Reservation placed while no copy existed; a copy then arrives.
	if _, err := repo.CreateReservation(ctx, db, member.ID, item.ID, branch.ID); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	seedCopy(t, db, item.ID, branch.ID, "R-1")

	svc := NewCirculationService(db, nil)
	res, err := svc.Checkout(ctx, member.MemberCode, []string{"R-1"})
	if err != nil || !res.AllOK() {
		t.Fatalf("Checkout: res=%+v err=%v", res, err)
	}

	left, err := repo.ListReservations(ctx, db, member.ID, "", "")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("reservation not consumed: %+v", left)
	}
}

func TestReturn_AtHomeBranch(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Homebody")
	cp := seedCopy(t, db, item.ID, branch.ID, "H-1")
	member := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	if res, err := svc.Checkout(ctx, member.MemberCode, []string{"H-1"}); err != nil || !res.AllOK() {
		t.Fatalf("checkout: res=%+v err=%v", res, err)
	}

	out, err := svc.Return(ctx, cp.ID, branch.ID)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if out.Transfer != nil {
		t.Fatalf("home return opened a transfer: %+v", out.Transfer)
	}
	if !out.Loan.Returned || out.Loan.ReturnedAt == nil {
		t.Fatalf("loan not closed: %+v", out.Loan)
	}
	if out.Copy.Status != domain.CopyAvailable {
		t.Fatalf("copy status = %q, want available", out.Copy.Status)
	}
	if out.Copy.BorrowerID != nil {
		t.Fatalf("borrower not cleared: %v", *out.Copy.BorrowerID)
	}
	if total, avail := itemCounters(t, db, item.ID); total != 1 || avail != 1 {
		t.Fatalf("counters = (%d,%d), want (1,1)", total, avail)
	}

	var n int64
	if err := db.Model(&domain.Transaction{}).
		Where("copy_id = ? AND type = ?", cp.ID, domain.TransactionReturn).
		Count(&n).Error; err != nil {
		t.Fatalf("count journal: %v", err)
	}
	if n != 1 {
		t.Fatalf("return journal entries = %d, want 1", n)
	}
}

func TestReturn_EmptyBranchMeansHome(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Implicit Home")
	cp := seedCopy(t, db, item.ID, branch.ID, "IH-1")
	member := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	if res, err := svc.Checkout(ctx, member.MemberCode, []string{"IH-1"}); err != nil || !res.AllOK() {
		t.Fatalf("checkout: res=%+v err=%v", res, err)
	}

	out, err := svc.Return(ctx, cp.ID, "")
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if out.Transfer != nil || out.Copy.Status != domain.CopyAvailable {
		t.Fatalf("expected shelf return, got %+v", out)
	}
}

func TestReturn_AtOtherBranchOpensTransfer(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	home := seedBranch(t, db, "CEN")
	away := seedBranch(t, db, "EAST")
	item := seedItem(t, db, "Traveler")
	cp := seedCopy(t, db, item.ID, home.ID, "T-1")
	member := seedMember(t, db, domain.MemberApproved)

	svc := NewCirculationService(db, nil)
	if res, err := svc.Checkout(ctx, member.MemberCode, []string{"T-1"}); err != nil || !res.AllOK() {
		t.Fatalf("checkout: res=%+v err=%v", res, err)
	}

	out, err := svc.Return(ctx, cp.ID, away.ID)
	if err != nil {
		t.Fatalf("Return: %v", err)
	}
	if out.Transfer == nil {
		t.Fatal("away return did not open a transfer")
	}
	if out.Transfer.FromBranchID != away.ID || out.Transfer.ToBranchID != home.ID {
		t.Fatalf("transfer route = %s → %s, want %s → %s",
			out.Transfer.FromBranchID, out.Transfer.ToBranchID, away.ID, home.ID)
	}
	if out.Transfer.Status != domain.TransferPending {
		t.Fatalf("transfer status = %q, want pending", out.Transfer.Status)
	}
	if out.Copy.Status != domain.CopyAtOtherBranch {
		t.Fatalf("copy status = %q, want at_other_branch", out.Copy.Status)
	}
	if out.Copy.CurrentBranchID != away.ID {
		t.Fatalf("current branch = %s, want %s", out.Copy.CurrentBranchID, away.ID)
	}
	// Not on the shelf yet, so availability must not move.
	if total, avail := itemCounters(t, db, item.ID); total != 1 || avail != 0 {
		t.Fatalf("counters = (%d,%d), want (1,0)", total, avail)
	}
}

func TestReturn_NotBorrowed(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Shelved")
	cp := seedCopy(t, db, item.ID, branch.ID, "S-1")

	svc := NewCirculationService(db, nil)
	if _, err := svc.Return(ctx, cp.ID, branch.ID); !errors.Is(err, ErrNotBorrowed) {
		t.Fatalf("got %v, want ErrNotBorrowed", err)
	}
	if _, err := svc.Return(ctx, "missing", branch.ID); !errors.Is(err, ErrCopyNotFound) {
		t.Fatalf("got %v, want ErrCopyNotFound", err)
	}
}

func TestReturn_PromotesOldestReservation(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	branch := seedBranch(t, db, "CEN")
	item := seedItem(t, db, "Hot Title")
	cp := seedCopy(t, db, item.ID, branch.ID, "HOT-1")
	holder := seedMember(t, db, domain.MemberApproved)
	waiter := seedMember(t, db, domain.MemberApproved)

	resv := NewReservationService(db, &notify.StoreSink{DB: db})
	svc := NewCirculationService(db, resv)

	if res, err := svc.Checkout(ctx, holder.MemberCode, []string{"HOT-1"}); err != nil || !res.AllOK() {
		t.Fatalf("checkout: res=%+v err=%v", res, err)
	}
	// No copy available now, so the waiter can join the list.
	if _, err := resv.Reserve(ctx, waiter.ID, item.ID, branch.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if _, err := svc.Return(ctx, cp.ID, branch.ID); err != nil {
		t.Fatalf("Return: %v", err)
	}

	held, err := repo.ListReservations(ctx, db, waiter.ID, "", "")
	if err != nil {
		t.Fatalf("list reservations: %v", err)
	}
	if len(held) != 1 {
		t.Fatalf("reservations = %d, want 1", len(held))
	}
	if held[0].Status != domain.ReservationNotified {
		t.Fatalf("reservation status = %q, want notified", held[0].Status)
	}

	msgs, err := repo.ListNotifications(ctx, db, waiter.ID)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(msgs) < 2 {
		t.Fatalf("expected reserve confirmation plus availability notice, got %d", len(msgs))
	}
}
