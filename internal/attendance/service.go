package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/apperr"
	"classtrack/internal/auth"
	"classtrack/internal/users"
)

// Store is the persistence surface the check-in protocol needs. The Postgres
// Repository implements it; tests supply in-memory fakes.
type Store interface {
	InsertToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, code string) (Token, error)
	IsEnrolled(ctx context.Context, studentID, classID string) (bool, error)
	InsertRecord(ctx context.Context, rec Record) (bool, error)
	UpsertRecord(ctx context.Context, rec Record) error
	ListClassRecords(ctx context.Context, classID, day string) ([]Record, error)
	ListStudentRecords(ctx context.Context, studentID string) ([]Record, error)
	GetClassOwner(ctx context.Context, classID string) (string, error)
	ListRoster(ctx context.Context, classID string) ([]RosterEntry, error)
}

// Service implements the QR check-in protocol: token issue, redeem, and
// read-only summaries.
type Service struct {
	store    Store
	tokenTTL time.Duration
	loc      *time.Location
	now      func() time.Time
	encode   func(code string, size int) (string, error)
}

// NewService creates a service. loc fixes the midnight boundary that defines
// "today" for the at-most-once-per-day rule.
func NewService(store Store, tokenTTL time.Duration, loc *time.Location) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 15 * time.Minute
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, tokenTTL: tokenTTL, loc: loc, now: time.Now, encode: QRImage}
}

// day is the fixed-midnight calendar day of t, not a rolling 24h window.
func (s *Service) day(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}

func (s *Service) requireClassManager(ctx context.Context, classID string, requester auth.Identity) error {
	owner, err := s.store.GetClassOwner(ctx, classID)
	if err != nil {
		return err
	}
	if requester.Role == string(users.RoleAdmin) || requester.ID == owner {
		return nil
	}
	return apperr.Authorization("not_owner", "only the owning teacher or an admin may do this")
}

// IssuedToken is a fresh token with its renderable QR encoding.
type IssuedToken struct {
	Token
	Image string `json:"image"`
}

// Issue creates a check-in token for a class. The requester must be an admin
// or the teacher who owns the class.
func (s *Service) Issue(ctx context.Context, classID string, requester auth.Identity) (IssuedToken, error) {
	if err := s.requireClassManager(ctx, classID, requester); err != nil {
		return IssuedToken{}, err
	}
	code, err := NewCode()
	if err != nil {
		return IssuedToken{}, apperr.Wrap(err, "token generation failed")
	}
	// Encode before persisting so a render failure leaves no redeemable token.
	image, err := s.encode(code, 256)
	if err != nil {
		return IssuedToken{}, apperr.Wrap(err, "qr encoding failed")
	}
	now := s.now().UTC()
	t := Token{
		Code:      code,
		ClassID:   classID,
		IssuedBy:  requester.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}
	if err := s.store.InsertToken(ctx, t); err != nil {
		return IssuedToken{}, err
	}
	tokensIssued.Inc()
	return IssuedToken{Token: t, Image: image}, nil
}

// Redeem marks the student present for the token's class today. At most one
// record exists per (student, class, day); the same active token serves any
// number of distinct enrolled students.
func (s *Service) Redeem(ctx context.Context, code, studentID string) (Record, error) {
	t, err := s.store.GetToken(ctx, code)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			redeemOutcomes.WithLabelValues("not_found").Inc()
		}
		return Record{}, err
	}
	now := s.now()
	if now.After(t.ExpiresAt) {
		redeemOutcomes.WithLabelValues("expired").Inc()
		return Record{}, apperr.Conflict("token_expired", "check-in code has expired")
	}
	enrolled, err := s.store.IsEnrolled(ctx, studentID, t.ClassID)
	if err != nil {
		return Record{}, err
	}
	if !enrolled {
		redeemOutcomes.WithLabelValues("not_enrolled").Inc()
		return Record{}, apperr.Authorization("not_enrolled", "student is not enrolled in this class")
	}

	rec := Record{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ClassID:   t.ClassID,
		Day:       s.day(now),
		Status:    StatusPresent,
		MarkedAt:  now.UTC(),
		TokenCode: t.Code,
	}
	inserted, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	if !inserted {
		redeemOutcomes.WithLabelValues("already_marked").Inc()
		return Record{}, apperr.Conflict("already_marked", "attendance already recorded for today")
	}
	redeemOutcomes.WithLabelValues("ok").Inc()
	return rec, nil
}

// Mark manually sets a student's status for a class day, overwriting any
// existing record. The requester must be an admin or the owning teacher.
func (s *Service) Mark(ctx context.Context, classID, studentID, day string, status Status, requester auth.Identity) (Record, error) {
	if !status.Valid() {
		return Record{}, apperr.Validation("invalid_status", "status must be PRESENT, ABSENT or LATE")
	}
	if day == "" {
		day = s.day(s.now())
	} else if _, err := time.ParseInLocation("2006-01-02", day, s.loc); err != nil {
		return Record{}, apperr.Validation("invalid_date", "date must be YYYY-MM-DD")
	}
	if err := s.requireClassManager(ctx, classID, requester); err != nil {
		return Record{}, err
	}
	enrolled, err := s.store.IsEnrolled(ctx, studentID, classID)
	if err != nil {
		return Record{}, err
	}
	if !enrolled {
		return Record{}, apperr.Validation("not_enrolled", "student is not enrolled in this class")
	}
	rec := Record{
		ID:        uuid.NewString(),
		StudentID: studentID,
		ClassID:   classID,
		Day:       day,
		Status:    status,
		MarkedAt:  s.now().UTC(),
	}
	if err := s.store.UpsertRecord(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ClassSummary tallies every enrolled student's status on one day. Students
// without a record are absent.
func (s *Service) ClassSummary(ctx context.Context, classID, day string, requester auth.Identity) (Summary, error) {
	if day == "" {
		day = s.day(s.now())
	} else if _, err := time.ParseInLocation("2006-01-02", day, s.loc); err != nil {
		return Summary{}, apperr.Validation("invalid_date", "date must be YYYY-MM-DD")
	}
	if err := s.requireClassManager(ctx, classID, requester); err != nil {
		return Summary{}, err
	}
	roster, err := s.store.ListRoster(ctx, classID)
	if err != nil {
		return Summary{}, err
	}
	records, err := s.store.ListClassRecords(ctx, classID, day)
	if err != nil {
		return Summary{}, err
	}
	byStudent := make(map[string]Status, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec.Status
	}

	sum := Summary{ClassID: classID, Day: day, Students: make([]StudentStatus, 0, len(roster))}
	for _, entry := range roster {
		status, ok := byStudent[entry.StudentID]
		if !ok {
			status = StatusAbsent
		}
		switch status {
		case StatusPresent:
			sum.Present++
		case StatusLate:
			sum.Late++
		default:
			sum.Absent++
		}
		sum.Students = append(sum.Students, StudentStatus{StudentID: entry.StudentID, Name: entry.Name, Status: status})
	}
	if len(roster) > 0 {
		sum.Percent = float64(sum.Present+sum.Late) / float64(len(roster)) * 100
	}
	return sum, nil
}

// Student returns a student's records with their attendance percentage.
func (s *Service) Student(ctx context.Context, studentID string) (StudentSummary, error) {
	records, err := s.store.ListStudentRecords(ctx, studentID)
	if err != nil {
		return StudentSummary{}, err
	}
	sum := StudentSummary{StudentID: studentID, Records: records}
	if len(records) > 0 {
		attended := 0
		for _, rec := range records {
			if rec.Status == StatusPresent || rec.Status == StatusLate {
				attended++
			}
		}
		sum.Percent = float64(attended) / float64(len(records)) * 100
	}
	return sum, nil
}
