// Package approval is the moderation workflow for new accounts: it holds
// registrations as pending records, lets reviewers approve or reject them
// from the admin API or from emailed links, and promotes approved records
// into users.
package approval

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptmarket/internal/auth"
	"promptmarket/internal/models"
	"promptmarket/internal/notify"
	"promptmarket/internal/store"
)

const (
	DefaultTokenTTL        = 7 * 24 * time.Hour
	DefaultVerificationTTL = 24 * time.Hour

	emailApproveNote = "approved via email"
	emailRejectNote  = "rejected via email"
)

type PendingStore interface {
	FindPendingByUsernameOrEmail(ctx context.Context, username, email string) ([]models.PendingRegistration, error)
	GetPendingByID(ctx context.Context, id string) (models.PendingRegistration, error)
	GetPendingByApprovalToken(ctx context.Context, token string) (models.PendingRegistration, error)
	GetPendingByRejectToken(ctx context.Context, token string) (models.PendingRegistration, error)
	CreatePending(ctx context.Context, p models.PendingRegistration) error
	ResetPending(ctx context.Context, p models.PendingRegistration) error
	SetPendingTokens(ctx context.Context, id, approveToken, rejectToken string, expiresAt time.Time) error
	RejectPending(ctx context.Context, p models.PendingRegistration) error
	PromotePending(ctx context.Context, p models.PendingRegistration, u models.User) error
	ListPending(ctx context.Context, q models.PendingQuery) ([]models.PendingRegistration, int, error)
	DeletePromotedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type UserStore interface {
	FindUserByUsernameOrEmail(ctx context.Context, username, email string) (models.User, error)
	CreateUser(ctx context.Context, u models.User) error
}

type Settings interface {
	ApprovalEnabled(ctx context.Context) (bool, error)
	NotificationAddresses(ctx context.Context) ([]string, error)
}

type Auditor interface {
	InsertAudit(ctx context.Context, actorID *string, action, target, metadata string) error
}

type Deps struct {
	Pending  PendingStore
	Users    UserStore
	Settings Settings
	Notifier notify.Notifier
	Hasher   auth.Hasher
	Audit    Auditor
	Metrics  *Metrics
	Logger   *slog.Logger

	Passwords       PasswordPolicy
	TokenTTL        time.Duration
	VerificationTTL time.Duration
	Now             func() time.Time
}

type Engine struct {
	pending   PendingStore
	users     UserStore
	settings  Settings
	notifier  notify.Notifier
	hasher    auth.Hasher
	audit     Auditor
	metrics   *Metrics
	log       *slog.Logger
	passwords PasswordPolicy
	tokenTTL  time.Duration
	verifyTTL time.Duration
	now       func() time.Time
}

func New(d Deps) *Engine {
	e := &Engine{
		pending:   d.Pending,
		users:     d.Users,
		settings:  d.Settings,
		notifier:  d.Notifier,
		hasher:    d.Hasher,
		audit:     d.Audit,
		metrics:   d.Metrics,
		log:       d.Logger,
		passwords: d.Passwords,
		tokenTTL:  d.TokenTTL,
		verifyTTL: d.VerificationTTL,
		now:       d.Now,
	}
	if e.hasher == nil {
		e.hasher = auth.Argon2idHasher{}
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.passwords.MinLength <= 0 {
		e.passwords.MinLength = 8
	}
	if e.passwords.MaxLength < e.passwords.MinLength {
		e.passwords.MaxLength = 128
	}
	if e.tokenTTL <= 0 {
		e.tokenTTL = DefaultTokenTTL
	}
	if e.verifyTTL <= 0 {
		e.verifyTTL = DefaultVerificationTTL
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type RegisterResult struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	CreatedAt        time.Time `json:"created_at"`
	RequiresApproval bool      `json:"requires_approval"`
}

// Promotion is the outcome of an approval: the reviewed record and the user
// created from it.
type Promotion struct {
	Pending models.PendingRegistration `json:"pending"`
	User    models.User                `json:"user"`
}

// Register accepts a new account request. With approval on it creates or
// resets a pending record and notifies reviewers; with approval off it
// creates the user directly and sends a verification email.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	in = in.normalized()
	if err := in.validate(e.passwords); err != nil {
		e.metrics.Registrations.WithLabelValues("invalid").Inc()
		return RegisterResult{}, err
	}
	if err := e.ensureNoUser(ctx, in.Username, in.Email); err != nil {
		e.countRegistration(err)
		return RegisterResult{}, err
	}
	hash, err := e.hasher.Hash(in.Password)
	if err != nil {
		return RegisterResult{}, e.fail("hash password", err)
	}
	creds := credentials{Username: in.Username, Email: in.Email, PasswordHash: hash}

	enabled, err := e.settings.ApprovalEnabled(ctx)
	if err != nil {
		e.log.Warn("approval setting unreadable, keeping approval on", "error", err)
		enabled = true
	}

	existing, err := e.pending.FindPendingByUsernameOrEmail(ctx, creds.Username, creds.Email)
	if err != nil {
		return RegisterResult{}, e.fail("find pending registration", err)
	}
	for _, rec := range existing {
		if rec.Status == models.PendingStatusPending {
			err := duplicatePending(matchField(rec, creds))
			e.countRegistration(err)
			return RegisterResult{}, err
		}
	}

	if !enabled {
		return e.registerDirect(ctx, creds)
	}

	var rec models.PendingRegistration
	switch target, blocker := pickResetTarget(existing, creds); {
	case blocker != nil:
		err := &Error{Kind: KindConflict, Field: matchField(*blocker, creds), Message: "this " + matchField(*blocker, creds) + " belongs to another registration"}
		e.countRegistration(err)
		return RegisterResult{}, err
	case target != nil:
		rec, err = e.resetExisting(ctx, *target, creds)
	default:
		rec, err = e.createPending(ctx, creds)
	}
	if err != nil {
		e.countRegistration(err)
		return RegisterResult{}, err
	}

	outcome := "created"
	if len(existing) > 0 {
		outcome = "reset"
	}
	e.metrics.Registrations.WithLabelValues(outcome).Inc()
	e.log.Info("registration pending approval", "pending_id", rec.ID, "username", rec.Username, "outcome", outcome)
	e.notifyReviewers(ctx, rec)

	return RegisterResult{ID: rec.ID, Username: rec.Username, Email: rec.Email, CreatedAt: rec.CreatedAt, RequiresApproval: true}, nil
}

// pickResetTarget chooses the reviewed row to recycle. The row holding the
// email wins; a second row holding the username blocks the reset.
func pickResetTarget(existing []models.PendingRegistration, c credentials) (target, blocker *models.PendingRegistration) {
	if len(existing) == 0 {
		return nil, nil
	}
	idx := 0
	for i := range existing {
		if existing[i].Email == c.Email {
			idx = i
			break
		}
	}
	target = &existing[idx]
	for i := range existing {
		if i != idx && existing[i].ID != target.ID {
			return nil, &existing[i]
		}
	}
	return target, nil
}

func (e *Engine) createPending(ctx context.Context, c credentials) (models.PendingRegistration, error) {
	tp, err := e.newTokenPair()
	if err != nil {
		return models.PendingRegistration{}, err
	}
	rec := newRecord(uuid.NewString(), c, tp, e.now().UTC())
	if err := e.pending.CreatePending(ctx, rec); err != nil {
		return models.PendingRegistration{}, e.mapPendingWrite("create pending registration", err, rec, "email")
	}
	return rec, nil
}

func (e *Engine) resetExisting(ctx context.Context, prev models.PendingRegistration, c credentials) (models.PendingRegistration, error) {
	tp, err := e.newTokenPair()
	if err != nil {
		return models.PendingRegistration{}, err
	}
	rec, err := resetRecord(prev, c, tp, e.now().UTC())
	if err != nil {
		return models.PendingRegistration{}, err
	}
	if err := e.pending.ResetPending(ctx, rec); err != nil {
		return models.PendingRegistration{}, e.mapPendingWrite("reset pending registration", err, rec, matchField(prev, c))
	}
	e.log.Info("pending registration reset for new epoch", "pending_id", rec.ID, "previous_status", prev.Status)
	return rec, nil
}

// mapPendingWrite turns lost races on the pending table into DuplicatePending.
// raceField names the field reported when the row changed under a
// conditional write.
func (e *Engine) mapPendingWrite(op string, err error, rec models.PendingRegistration, raceField string) error {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return duplicatePending("email")
	case errors.Is(err, store.ErrDuplicateUsername):
		return duplicatePending("username")
	case errors.Is(err, store.ErrConflict):
		return duplicatePending(raceField)
	}
	e.log.Error(op, "pending_id", rec.ID, "username", rec.Username, "error", err)
	return storeFailure(op, err)
}

func (e *Engine) registerDirect(ctx context.Context, c credentials) (RegisterResult, error) {
	raw, digest, err := auth.NewOpaqueToken()
	if err != nil {
		return RegisterResult{}, storeFailure("issue verification token", err)
	}
	now := e.now().UTC()
	exp := now.Add(e.verifyTTL)
	u := models.User{
		ID:                    uuid.NewString(),
		Username:              c.Username,
		Email:                 c.Email,
		PasswordHash:          c.PasswordHash,
		VerificationTokenHash: &digest,
		VerificationExpiresAt: &exp,
		CreatedAt:             now,
	}
	if err := e.users.CreateUser(ctx, u); err != nil {
		err = e.mapUserWrite("create user", err, u)
		e.countRegistration(err)
		return RegisterResult{}, err
	}
	e.metrics.Registrations.WithLabelValues("direct").Inc()
	e.log.Info("user registered without approval", "user_id", u.ID, "username", u.Username)
	e.sendBestEffort("verification", u.Email, u.ID, func() error {
		return e.notifier.SendVerificationEmail(ctx, u.Email, u.Username, raw)
	})
	return RegisterResult{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt, RequiresApproval: false}, nil
}

func (e *Engine) ApproveByAdmin(ctx context.Context, pendingID, reviewerID, notes string) (Promotion, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return Promotion{}, &Error{Kind: KindValidation, Field: "reviewer", Message: "reviewer is required"}
	}
	rec, err := e.byID(ctx, pendingID)
	if err != nil {
		return Promotion{}, err
	}
	out, err := e.review(ctx, rec, decision{approve: true, channel: "admin", reviewerID: &reviewerID, notes: optional(notes)})
	return out.promotion, err
}

func (e *Engine) ApproveByToken(ctx context.Context, token string) (Promotion, error) {
	rec, err := e.byToken(ctx, token, e.pending.GetPendingByApprovalToken)
	if err != nil {
		return Promotion{}, err
	}
	note := emailApproveNote
	out, err := e.review(ctx, rec, decision{approve: true, channel: "email", notes: &note})
	return out.promotion, err
}

func (e *Engine) RejectByAdmin(ctx context.Context, pendingID, reviewerID, notes string) (models.PendingRegistration, error) {
	if strings.TrimSpace(reviewerID) == "" {
		return models.PendingRegistration{}, &Error{Kind: KindValidation, Field: "reviewer", Message: "reviewer is required"}
	}
	rec, err := e.byID(ctx, pendingID)
	if err != nil {
		return models.PendingRegistration{}, err
	}
	out, err := e.review(ctx, rec, decision{channel: "admin", reviewerID: &reviewerID, notes: optional(notes)})
	return out.record, err
}

func (e *Engine) RejectByToken(ctx context.Context, token string) (models.PendingRegistration, error) {
	rec, err := e.byToken(ctx, token, e.pending.GetPendingByRejectToken)
	if err != nil {
		return models.PendingRegistration{}, err
	}
	note := emailRejectNote
	out, err := e.review(ctx, rec, decision{channel: "email", notes: &note})
	return out.record, err
}

type decision struct {
	approve    bool
	channel    string
	reviewerID *string
	notes      *string
}

func (d decision) name() string {
	if d.approve {
		return "approve"
	}
	return "reject"
}

type reviewOutcome struct {
	record    models.PendingRegistration
	promotion Promotion
}

// review is the single transition path behind both admin and emailed links.
func (e *Engine) review(ctx context.Context, rec models.PendingRegistration, d decision) (reviewOutcome, error) {
	if rec.Status != models.PendingStatusPending {
		return reviewOutcome{}, alreadyReviewed(rec.ID)
	}
	r := review{ReviewerID: d.reviewerID, Notes: d.notes, At: e.now().UTC()}

	var out reviewOutcome
	var verifyToken string
	if d.approve {
		if err := e.ensureNoUser(ctx, rec.Username, rec.Email); err != nil {
			return reviewOutcome{}, e.recheckReviewed(ctx, rec, err)
		}
		u, raw, err := e.userFromPending(rec, r.At)
		if err != nil {
			return reviewOutcome{}, err
		}
		next, err := approveRecord(rec, r, u.ID)
		if err != nil {
			return reviewOutcome{}, err
		}
		if err := e.pending.PromotePending(ctx, next, u); err != nil {
			return reviewOutcome{}, e.mapReviewWrite(ctx, "promote registration", err, rec)
		}
		out = reviewOutcome{record: next, promotion: Promotion{Pending: next, User: u}}
		verifyToken = raw
	} else {
		next, err := rejectRecord(rec, r)
		if err != nil {
			return reviewOutcome{}, err
		}
		if err := e.pending.RejectPending(ctx, next); err != nil {
			return reviewOutcome{}, e.mapReviewWrite(ctx, "reject registration", err, rec)
		}
		out = reviewOutcome{record: next}
	}

	e.metrics.Reviews.WithLabelValues(d.name(), d.channel).Inc()
	e.log.Info("registration reviewed", "pending_id", rec.ID, "decision", d.name(), "channel", d.channel)
	meta := map[string]any{"channel": d.channel}
	if d.notes != nil {
		meta["notes"] = *d.notes
	}
	if d.approve {
		meta["user_id"] = out.promotion.User.ID
	}
	e.writeAudit(ctx, d.reviewerID, "registration."+d.name(), rec.ID, meta)

	if d.approve {
		u := out.promotion.User
		e.sendBestEffort("verification", u.Email, rec.ID, func() error {
			return e.notifier.SendVerificationEmail(ctx, u.Email, u.Username, verifyToken)
		})
	} else {
		e.sendBestEffort("rejection", rec.Email, rec.ID, func() error {
			return e.notifier.SendRejectionEmail(ctx, rec.Email, rec.Username)
		})
	}
	return out, nil
}

// recheckReviewed reports AlreadyReviewed instead of a user conflict when the
// colliding user is the one a concurrent approval just promoted.
func (e *Engine) recheckReviewed(ctx context.Context, rec models.PendingRegistration, err error) error {
	if KindOf(err) != KindConflict {
		return err
	}
	cur, lerr := e.pending.GetPendingByID(ctx, rec.ID)
	if lerr == nil && cur.Status != models.PendingStatusPending {
		return alreadyReviewed(rec.ID)
	}
	return err
}

func (e *Engine) userFromPending(rec models.PendingRegistration, at time.Time) (models.User, string, error) {
	raw, digest, err := auth.NewOpaqueToken()
	if err != nil {
		return models.User{}, "", storeFailure("issue verification token", err)
	}
	exp := at.Add(e.verifyTTL)
	return models.User{
		ID:                    uuid.NewString(),
		Username:              rec.Username,
		Email:                 rec.Email,
		PasswordHash:          rec.PasswordHash,
		VerificationTokenHash: &digest,
		VerificationExpiresAt: &exp,
		CreatedAt:             at,
	}, raw, nil
}

func (e *Engine) mapReviewWrite(ctx context.Context, op string, err error, rec models.PendingRegistration) error {
	switch {
	case errors.Is(err, store.ErrConflict):
		return alreadyReviewed(rec.ID)
	case errors.Is(err, store.ErrDuplicateEmail):
		return e.recheckReviewed(ctx, rec, userConflict("email"))
	case errors.Is(err, store.ErrDuplicateUsername):
		return e.recheckReviewed(ctx, rec, userConflict("username"))
	}
	e.log.Error(op, "pending_id", rec.ID, "error", err)
	return storeFailure(op, err)
}

func (e *Engine) mapUserWrite(op string, err error, u models.User) error {
	switch {
	case errors.Is(err, store.ErrDuplicateEmail):
		return userConflict("email")
	case errors.Is(err, store.ErrDuplicateUsername):
		return userConflict("username")
	}
	e.log.Error(op, "username", u.Username, "error", err)
	return storeFailure(op, err)
}

// ResendNotification re-sends the reviewer email for a pending record,
// issuing a new token pair only when the current one is missing or expired.
func (e *Engine) ResendNotification(ctx context.Context, pendingID string) error {
	rec, err := e.byID(ctx, pendingID)
	if err != nil {
		return err
	}
	if rec.Status != models.PendingStatusPending {
		return alreadyReviewed(rec.ID)
	}
	regenerated := false
	if !e.tokensUsable(rec) {
		tp, err := e.newTokenPair()
		if err != nil {
			return err
		}
		if err := e.pending.SetPendingTokens(ctx, rec.ID, tp.Approve, tp.Reject, tp.ExpiresAt); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return alreadyReviewed(rec.ID)
			}
			e.log.Error("refresh approval tokens", "pending_id", rec.ID, "error", err)
			return storeFailure("refresh approval tokens", err)
		}
		rec = withTokens(rec, tp)
		regenerated = true
	}
	delivered := e.notifyReviewers(ctx, rec)
	e.writeAudit(ctx, nil, "registration.resend", rec.ID, map[string]any{"regenerated": regenerated, "delivered": delivered})
	return nil
}

func (e *Engine) ListPending(ctx context.Context, q models.PendingQuery) ([]models.PendingRegistration, int, error) {
	if q.Status == "" {
		q.Status = string(models.PendingStatusPending)
	}
	if s := strings.ToLower(q.Status); s != "all" && !models.PendingStatus(s).Valid() {
		return nil, 0, &Error{Kind: KindValidation, Field: "status", Message: "status must be pending, approved, rejected or all"}
	}
	rows, total, err := e.pending.ListPending(ctx, q)
	if err != nil {
		e.log.Error("list pending registrations", "error", err)
		return nil, 0, storeFailure("list pending registrations", err)
	}
	return rows, total, nil
}

func (e *Engine) GetByID(ctx context.Context, id string) (models.PendingRegistration, error) {
	return e.byID(ctx, id)
}

// CleanupPromoted deletes approved records whose user exists and whose
// review is older than olderThan.
func (e *Engine) CleanupPromoted(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan < 0 {
		return 0, &Error{Kind: KindValidation, Field: "older_than", Message: "older_than must not be negative"}
	}
	n, err := e.pending.DeletePromotedBefore(ctx, e.now().UTC().Add(-olderThan))
	if err != nil {
		e.log.Error("cleanup promoted registrations", "deleted", n, "error", err)
		return n, storeFailure("cleanup promoted registrations", err)
	}
	e.metrics.CleanedUp.Add(float64(n))
	if n > 0 {
		e.log.Info("cleaned up promoted registrations", "deleted", n)
	}
	return n, nil
}

func (e *Engine) byID(ctx context.Context, id string) (models.PendingRegistration, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.PendingRegistration{}, &Error{Kind: KindNotFound, Message: "registration not found"}
	}
	rec, err := e.pending.GetPendingByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.PendingRegistration{}, &Error{Kind: KindNotFound, Message: "registration " + id + " not found"}
	}
	if err != nil {
		e.log.Error("load pending registration", "pending_id", id, "error", err)
		return models.PendingRegistration{}, storeFailure("load pending registration", err)
	}
	return rec, nil
}

// byToken resolves a link token. Unknown and expired tokens look the same to
// the caller; a live token on a reviewed record reports AlreadyReviewed.
func (e *Engine) byToken(ctx context.Context, token string, lookup func(context.Context, string) (models.PendingRegistration, error)) (models.PendingRegistration, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.PendingRegistration{}, invalidToken()
	}
	rec, err := lookup(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return models.PendingRegistration{}, invalidToken()
	}
	if err != nil {
		e.log.Error("resolve review token", "error", err)
		return models.PendingRegistration{}, storeFailure("resolve review token", err)
	}
	if !e.tokensUsable(rec) {
		return models.PendingRegistration{}, invalidToken()
	}
	if rec.Status != models.PendingStatusPending {
		return models.PendingRegistration{}, alreadyReviewed(rec.ID)
	}
	return rec, nil
}

func (e *Engine) tokensUsable(rec models.PendingRegistration) bool {
	if rec.ApprovalToken == nil || rec.RejectToken == nil || rec.TokenExpiresAt == nil {
		return false
	}
	return e.now().Before(*rec.TokenExpiresAt)
}

func (e *Engine) newTokenPair() (tokenPair, error) {
	approve, reject, err := auth.NewTokenPair()
	if err != nil {
		return tokenPair{}, storeFailure("issue approval tokens", err)
	}
	return tokenPair{Approve: approve, Reject: reject, ExpiresAt: e.now().UTC().Add(e.tokenTTL)}, nil
}

// ensureNoUser fails with Conflict when either identifier already belongs to
// a user.
func (e *Engine) ensureNoUser(ctx context.Context, username, email string) error {
	u, err := e.users.FindUserByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		e.log.Error("check existing user", "username", username, "error", err)
		return storeFailure("check existing user", err)
	}
	if strings.EqualFold(u.Email, email) {
		return userConflict("email")
	}
	return userConflict("username")
}

// notifyReviewers reports whether at least one reviewer address was sent to.
func (e *Engine) notifyReviewers(ctx context.Context, rec models.PendingRegistration) bool {
	to, err := e.settings.NotificationAddresses(ctx)
	if err != nil {
		e.metrics.Notifications.WithLabelValues("approval_request", "error").Inc()
		e.log.Error("resolve reviewer addresses", "pending_id", rec.ID, "error", err)
		return false
	}
	if len(to) == 0 {
		e.metrics.Notifications.WithLabelValues("approval_request", "skipped").Inc()
		e.log.Warn("no reviewer addresses configured", "pending_id", rec.ID)
		return false
	}
	approve, reject := deref(rec.ApprovalToken), deref(rec.RejectToken)
	return e.sendBestEffort("approval_request", strings.Join(to, ","), rec.ID, func() error {
		return e.notifier.SendApprovalNotification(ctx, to, rec, approve, reject)
	})
}

// sendBestEffort runs one notification; failures are counted and logged and
// never reach the caller.
func (e *Engine) sendBestEffort(kind, recipient, subjectID string, send func() error) bool {
	if e.notifier == nil {
		e.metrics.Notifications.WithLabelValues(kind, "skipped").Inc()
		return false
	}
	if err := send(); err != nil {
		e.metrics.Notifications.WithLabelValues(kind, "error").Inc()
		e.log.Error("notification failed", "kind", kind, "recipient", recipient, "subject_id", subjectID, "error", err)
		return false
	}
	e.metrics.Notifications.WithLabelValues(kind, "sent").Inc()
	return true
}

func (e *Engine) writeAudit(ctx context.Context, actor *string, action, pendingID string, meta map[string]any) {
	if e.audit == nil {
		return
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		raw = []byte("{}")
	}
	if err := e.audit.InsertAudit(ctx, actor, action, "pending:"+pendingID, string(raw)); err != nil {
		e.log.Warn("audit write failed", "action", action, "pending_id", pendingID, "error", err)
	}
}

func (e *Engine) countRegistration(err error) {
	e.metrics.Registrations.WithLabelValues(KindOf(err).String()).Inc()
}

func (e *Engine) fail(op string, err error) error {
	e.log.Error(op, "error", err)
	e.metrics.Registrations.WithLabelValues(KindStoreFailure.String()).Inc()
	return storeFailure(op, err)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
