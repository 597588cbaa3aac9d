// Package domain defines the persistence models for the circulation and
// inventory core: branches, catalog items, physical copies, loans,
// reservations, inter-branch transfers, and the transaction journal.
// These types are mapped with GORM and form the core data layer of the
// library backend.
package domain

import (
	"time"
)

// CopyStatus enumerates the lifecycle states of a physical copy.
type CopyStatus string

// Copy lifecycle states. A copy is created available at its home branch and
// is soft-deleted by the terminal CopyDeleted transition.
const (
	CopyAvailable     CopyStatus = "available"
	CopyBorrowed      CopyStatus = "borrowed"
	CopyReserved      CopyStatus = "reserved"
	CopyAtOtherBranch CopyStatus = "at_other_branch"
	CopyInTransit     CopyStatus = "in_transit"
	CopyDeleted       CopyStatus = "deleted"
)

// ValidCopyStatus reports whether s is one of the allowed copy states.
func ValidCopyStatus(s CopyStatus) bool {
	switch s {
	case CopyAvailable, CopyBorrowed, CopyReserved, CopyAtOtherBranch, CopyInTransit, CopyDeleted:
		return true
	}
	return false
}

// MemberStatus enumerates the registration states of a member account.
type MemberStatus string

// Member registration states. Only approved members may borrow.
const (
	MemberPending  MemberStatus = "pending"
	MemberApproved MemberStatus = "approved"
	MemberBlocked  MemberStatus = "blocked"
	MemberDeleted  MemberStatus = "deleted"
)

// TransferStatus enumerates the states of an inter-branch transfer.
// Transitions are strictly forward: pending → in_transit → completed.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferInTransit TransferStatus = "in_transit"
	TransferCompleted TransferStatus = "completed"
)

// ReservationStatus enumerates reservation states.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"
	ReservationNotified ReservationStatus = "notified"
)

// TransactionType distinguishes journal entries.
type TransactionType string

const (
	TransactionBorrow TransactionType = "borrow"
	TransactionReturn TransactionType = "return"
)

// Branch is a physical location of the lending organization. The core only
// needs its identity; descriptive fields exist for the thin listing views.
type Branch struct {
	ID        string    `json:"id"   gorm:"type:char(36);primaryKey"`
	Code      string    `json:"code" gorm:"type:varchar(16);not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Branch.
func (Branch) TableName() string { return "branches" }

// Item is a catalog entry. TotalCopies and AvailableCopies are denormalized
// aggregates maintained exclusively via atomic relative updates alongside
// copy-status transitions; they are never recomputed in the hot path.
type Item struct {
	ID              string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Title           string    `json:"title"      gorm:"type:varchar(255);not null"`
	ItemType        string    `json:"item_type"  gorm:"type:varchar(32);not null"`
	Category        string    `json:"category"   gorm:"type:varchar(64)"`
	TotalCopies     int       `json:"total_copies"     gorm:"not null;default:0"`
	AvailableCopies int       `json:"available_copies" gorm:"not null;default:0"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName returns the database table name for Item.
func (Item) TableName() string { return "library_items" }

// Member is a registered borrower. MemberCode is the human-facing sequential
// identifier (e.g. MEM1001) issued by the sequence counter at registration.
// DueAmount is the aggregate of late fees across the member's open loans,
// overwritten by the fee engine on each recomputation pass.
type Member struct {
	ID         string       `json:"id"          gorm:"type:char(36);primaryKey"`
	MemberCode string       `json:"member_code" gorm:"type:varchar(16);not null;uniqueIndex"`
	FirstName  string       `json:"first_name"  gorm:"type:varchar(64);not null"`
	LastName   string       `json:"last_name"   gorm:"type:varchar(64);not null"`
	Email      string       `json:"email"       gorm:"type:varchar(128);not null"`
	ContactNo  string       `json:"contact_no"  gorm:"type:varchar(32)"`
	Status     MemberStatus `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index"`
	DueAmount  float64      `json:"due_amount"  gorm:"not null;default:0"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Member.
func (Member) TableName() string { return "members" }

// Copy is one physical instance of a catalog item, trackable by a unique
// radio tag (RFID, stored upper-cased). OriginalBranchID is the copy's home
// branch; CurrentBranchID tracks its present location and equals the home
// branch whenever the copy is available, borrowed, or deleted. BorrowerID is
// non-nil iff the copy is borrowed.
//
// The Status column is the sole concurrency-control point for physical
// inventory races: every status change is a compare-and-set against the
// expected prior status (see repo.TransitionCopy).
type Copy struct {
	ID               string     `json:"id"       gorm:"type:char(36);primaryKey"`
	ItemID           string     `json:"item_id"  gorm:"type:char(36);not null;index:idx_copy_item"`
	RFID             string     `json:"rfid"     gorm:"column:rfid;type:varchar(64);not null;uniqueIndex"`
	OriginalBranchID string     `json:"original_branch_id" gorm:"type:char(36);not null;index"`
	CurrentBranchID  string     `json:"current_branch_id"  gorm:"type:char(36);not null"`
	BorrowerID       *string    `json:"borrower_id,omitempty" gorm:"type:char(36)"`
	Status           CopyStatus `json:"status"   gorm:"type:varchar(16);not null;default:'available';index"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Item is the owning catalog entry.
	Item Item `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Copy.
func (Copy) TableName() string { return "copies" }

// AwayFromHome reports whether the copy currently sits at a branch other
// than its home branch.
func (c *Copy) AwayFromHome() bool { return c.CurrentBranchID != c.OriginalBranchID }

// Loan is one borrowing episode binding a member to a copy until returned.
// At most one loan with Returned=false exists per copy at any time; this is
// enforced by the copy-status compare-and-set, not by a scan. Loans are
// closed, never deleted.
type Loan struct {
	ID           string     `json:"id"        gorm:"type:char(36);primaryKey"`
	MemberID     string     `json:"member_id" gorm:"type:char(36);not null;index:idx_loan_member"`
	ItemID       string     `json:"item_id"   gorm:"type:char(36);not null;index"`
	CopyID       string     `json:"copy_id"   gorm:"type:char(36);not null;index:idx_loan_copy"`
	BranchID     string     `json:"branch_id" gorm:"type:char(36);not null"`
	RFID         string     `json:"rfid"      gorm:"column:rfid;type:varchar(64);not null"`
	BorrowedAt   time.Time  `json:"borrowed_at"`
	DueDate      time.Time  `json:"due_date"   gorm:"not null;index"`
	RenewalsLeft int        `json:"renewals_left" gorm:"not null;default:0"`
	DelayedDays  int        `json:"delayed_days"  gorm:"not null;default:0"`
	LateFee      float64    `json:"late_fee"      gorm:"not null;default:0"`
	Returned     bool       `json:"returned"      gorm:"not null;default:false;index"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Loan.
func (Loan) TableName() string { return "loans" }

// Reservation is a waiting-list entry: a member's standing claim on an item
// at a branch with no available copies. A member may hold at most one
// reservation per (item, branch) pair, enforced by the unique index.
type Reservation struct {
	ID         string            `json:"id"        gorm:"type:char(36);primaryKey"`
	MemberID   string            `json:"member_id" gorm:"type:char(36);not null;uniqueIndex:ux_resv_member_item_branch,priority:1"`
	ItemID     string            `json:"item_id"   gorm:"type:char(36);not null;uniqueIndex:ux_resv_member_item_branch,priority:2;index:idx_resv_item_branch,priority:1"`
	BranchID   string            `json:"branch_id" gorm:"type:char(36);not null;uniqueIndex:ux_resv_member_item_branch,priority:3;index:idx_resv_item_branch,priority:2"`
	Status     ReservationStatus `json:"status"    gorm:"type:varchar(16);not null;default:'active'"`
	ReservedAt time.Time         `json:"reserved_at" gorm:"not null;index"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// TableName returns the database table name for Reservation.
func (Reservation) TableName() string { return "reservations" }

// Transfer records custody movement of a copy from the branch it was
// returned at back to its home branch. InitiatedOn is set when staff confirm
// physical dispatch; CompletedOn when arrival is confirmed or when the
// timeout sweep resolves a stalled transfer.
type Transfer struct {
	ID           string         `json:"id"        gorm:"type:char(36);primaryKey"`
	CopyID       string         `json:"copy_id"   gorm:"type:char(36);not null;index"`
	ItemID       string         `json:"item_id"   gorm:"type:char(36);not null"`
	FromBranchID string         `json:"from_branch_id" gorm:"type:char(36);not null;index"`
	ToBranchID   string         `json:"to_branch_id"   gorm:"type:char(36);not null"`
	Status       TransferStatus `json:"status"    gorm:"type:varchar(16);not null;default:'pending';index"`
	InitiatedOn  *time.Time     `json:"initiated_on,omitempty" gorm:"index"`
	CompletedOn  *time.Time     `json:"completed_on,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Transfer.
func (Transfer) TableName() string { return "transfers" }

// Transaction is an append-only journal entry emitted by the circulation
// coordinator for every borrow and return. PaidAmount records the late fee
// outstanding at return time.
type Transaction struct {
	ID         string          `json:"id"   gorm:"type:char(36);primaryKey"`
	Code       string          `json:"code" gorm:"type:varchar(40);not null;uniqueIndex"`
	MemberID   string          `json:"member_id" gorm:"type:char(36);not null;index"`
	ItemID     string          `json:"item_id"   gorm:"type:char(36);not null"`
	CopyID     string          `json:"copy_id"   gorm:"type:char(36);not null"`
	Type       TransactionType `json:"type"      gorm:"type:varchar(16);not null"`
	BranchID   string          `json:"branch_id" gorm:"type:char(36);not null;index"`
	DueDate    *time.Time      `json:"due_date,omitempty"`
	PaidAmount float64         `json:"paid_amount" gorm:"not null;default:0"`
	CreatedAt  time.Time       `json:"created_at"  gorm:"index"`
}

// TableName returns the database table name for Transaction.
func (Transaction) TableName() string { return "transactions" }

// Notification is a fire-and-forget message to a member, persisted so the
// member portal can list and dismiss it.
type Notification struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	MemberID  string    `json:"member_id" gorm:"type:char(36);not null;index"`
	Message   string    `json:"message"   gorm:"type:text;not null"`
	Status    string    `json:"status"    gorm:"type:varchar(16);not null;default:'unread'"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Sequence is a named, monotonically increasing counter used to issue
// human-facing identifiers (member codes, staff numbers). The increment is a
// single relative UPDATE and is linearizable per name.
type Sequence struct {
	Name  string `gorm:"type:varchar(32);primaryKey"`
	Value int64  `gorm:"not null"`
}

// TableName returns the database table name for Sequence.
func (Sequence) TableName() string { return "sequences" }
