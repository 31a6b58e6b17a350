package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore implements Store over database/sql with the lib/pq driver.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) CreateUser(ctx context.Context, name string) (*User, error) {
	u := &User{Name: name}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO users (name) VALUES ($1)
        RETURNING id, created_at
    `, name).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, name, created_at FROM users WHERE id=$1
    `, id).Scan(&u.ID, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, title string, maxAttempts, participantLimit int) (*Conversation, error) {
	c := &Conversation{
		ID:               uuid.NewString(),
		Title:            title,
		MaxAttempts:      maxAttempts,
		ParticipantLimit: participantLimit,
	}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO conversations (id, title, max_attempts, participant_limit)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at
    `, c.ID, c.Title, c.MaxAttempts, c.ParticipantLimit).Scan(&c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) GetConversationByID(ctx context.Context, id string) (*Conversation, error) {
	c := &Conversation{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, title, max_attempts, participant_limit, created_at
        FROM conversations WHERE id=$1
    `, id).Scan(&c.ID, &c.Title, &c.MaxAttempts, &c.ParticipantLimit, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, title, max_attempts, participant_limit, created_at
        FROM conversations ORDER BY created_at
    `)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c := &Conversation{}
		if err := rows.Scan(&c.ID, &c.Title, &c.MaxAttempts, &c.ParticipantLimit, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddParticipant(ctx context.Context, convoID string, userID int64) error {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO participations (user_id, convo_id) VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, userID, convoID)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PostgresStore) CountParticipants(ctx context.Context, convoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
        SELECT count(*) FROM participations WHERE convo_id=$1
    `, convoID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListParticipants(ctx context.Context, convoID string) ([]*Participation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, convo_id FROM participations WHERE convo_id=$1
    `, convoID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*Participation
	for rows.Next() {
		p := &Participation{}
		if err := rows.Scan(&p.UserID, &p.ConvoID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMessage(ctx context.Context, text string, userID int64, convoID string, replyingTo *string) (*Message, error) {
	m := &Message{
		ID:                  uuid.NewString(),
		Text:                text,
		UserID:              userID,
		ConvoID:             convoID,
		ReplyingToMessageID: replyingTo,
	}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO messages (id, text, user_id, convo_id, replying_to_message_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at
    `, m.ID, m.Text, m.UserID, m.ConvoID, m.ReplyingToMessageID).Scan(&m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	m := &Message{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, text, user_id, convo_id, replying_to_message_id, created_at
        FROM messages WHERE id=$1
    `, id).Scan(&m.ID, &m.Text, &m.UserID, &m.ConvoID, &m.ReplyingToMessageID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMessagesByConversation(ctx context.Context, convoID string) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, text, user_id, convo_id, replying_to_message_id, created_at
        FROM messages WHERE convo_id=$1 ORDER BY created_at
    `, convoID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.Text, &m.UserID, &m.ConvoID, &m.ReplyingToMessageID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateInterpretation(ctx context.Context, messageID string, userID int64, text string, attemptNumber int) (*Interpretation, error) {
	in := &Interpretation{
		ID:            uuid.NewString(),
		MessageID:     messageID,
		UserID:        userID,
		Text:          text,
		AttemptNumber: attemptNumber,
	}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO interpretations (id, message_id, user_id, text, attempt_number)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at
    `, in.ID, in.MessageID, in.UserID, in.Text, in.AttemptNumber).Scan(&in.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create interpretation: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) GetInterpretationByID(ctx context.Context, id string) (*Interpretation, error) {
	in := &Interpretation{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, message_id, user_id, text, attempt_number, created_at
        FROM interpretations WHERE id=$1
    `, id).Scan(&in.ID, &in.MessageID, &in.UserID, &in.Text, &in.AttemptNumber, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get interpretation: %w", err)
	}
	return in, nil
}

func (s *PostgresStore) ListInterpretations(ctx context.Context, messageID string, userID int64) ([]*Interpretation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, message_id, user_id, text, attempt_number, created_at
        FROM interpretations
        WHERE message_id=$1 AND user_id=$2
        ORDER BY attempt_number DESC
    `, messageID, userID)
	if err != nil {
		return nil, fmt.Errorf("list interpretations: %w", err)
	}
	defer rows.Close()

	var out []*Interpretation
	for rows.Next() {
		in := &Interpretation{}
		if err := rows.Scan(&in.ID, &in.MessageID, &in.UserID, &in.Text, &in.AttemptNumber, &in.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateGrading(ctx context.Context, g *Grading) (*Grading, error) {
	created := *g
	created.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO gradings (id, interpretation_id, status, similarity_score, auto_accept_suggested, notes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `, created.ID, created.InterpretationID, string(created.Status), created.SimilarityScore,
		created.AutoAcceptSuggested, nullIfEmpty(created.Notes)).Scan(&created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create grading: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetGradingByID(ctx context.Context, id string) (*Grading, error) {
	return s.scanGrading(s.db.QueryRowContext(ctx, `
        SELECT id, interpretation_id, status, similarity_score, auto_accept_suggested, coalesce(notes,''), created_at
        FROM gradings WHERE id=$1
    `, id))
}

func (s *PostgresStore) GetGradingByInterpretation(ctx context.Context, interpretationID string) (*Grading, error) {
	return s.scanGrading(s.db.QueryRowContext(ctx, `
        SELECT id, interpretation_id, status, similarity_score, auto_accept_suggested, coalesce(notes,''), created_at
        FROM gradings WHERE interpretation_id=$1
    `, interpretationID))
}

func (s *PostgresStore) scanGrading(row *sql.Row) (*Grading, error) {
	g := &Grading{}
	var status string
	err := row.Scan(&g.ID, &g.InterpretationID, &status, &g.SimilarityScore, &g.AutoAcceptSuggested, &g.Notes, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan grading: %w", err)
	}
	g.Status = GradingStatus(status)
	return g, nil
}

func (s *PostgresStore) UpdateGrading(ctx context.Context, id string, update GradingUpdate) (*Grading, error) {
	g := &Grading{}
	var status string
	err := s.db.QueryRowContext(ctx, `
        UPDATE gradings
        SET status = coalesce($1::text, status),
            notes  = coalesce($2::text, notes)
        WHERE id=$3
        RETURNING id, interpretation_id, status, similarity_score, auto_accept_suggested, coalesce(notes,''), created_at
    `, statusArg(update.Status), update.Notes, id).
		Scan(&g.ID, &g.InterpretationID, &status, &g.SimilarityScore, &g.AutoAcceptSuggested, &g.Notes, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update grading: %w", err)
	}
	g.Status = GradingStatus(status)
	return g, nil
}

func statusArg(s *GradingStatus) interface{} {
	if s == nil {
		return nil
	}
	return string(*s)
}

func (s *PostgresStore) CreateGradingResponse(ctx context.Context, gradingID, text string) (*GradingResponse, error) {
	r := &GradingResponse{
		ID:        uuid.NewString(),
		GradingID: gradingID,
		Text:      text,
	}
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO grading_responses (id, grading_id, text)
        VALUES ($1, $2, $3)
        ON CONFLICT (grading_id) DO NOTHING
        RETURNING created_at
    `, r.ID, r.GradingID, r.Text).Scan(&r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create grading response: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetGradingResponseByGrading(ctx context.Context, gradingID string) (*GradingResponse, error) {
	r := &GradingResponse{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, grading_id, text, created_at
        FROM grading_responses WHERE grading_id=$1
    `, gradingID).Scan(&r.ID, &r.GradingID, &r.Text, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grading response: %w", err)
	}
	return r, nil
}

// CreateArbitration is an insert-if-absent keyed on interpretation_id, so
// two racing triggers cannot produce duplicate rulings.
func (s *PostgresStore) CreateArbitration(ctx context.Context, a *Arbitration) (*Arbitration, error) {
	created := *a
	created.ID = uuid.NewString()
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO arbitrations (id, message_id, interpretation_id, grading_id, grading_response_id, result, ruling_status, explanation)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (interpretation_id) DO NOTHING
        RETURNING created_at
    `, created.ID, created.MessageID, created.InterpretationID, created.GradingID,
		created.GradingResponseID, string(created.Result), created.RulingStatus, created.Explanation).
		Scan(&created.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("create arbitration: %w", err)
	}
	return &created, nil
}

func (s *PostgresStore) GetArbitrationByInterpretation(ctx context.Context, interpretationID string) (*Arbitration, error) {
	a := &Arbitration{}
	var result string
	err := s.db.QueryRowContext(ctx, `
        SELECT id, message_id, interpretation_id, grading_id, grading_response_id, result, ruling_status, explanation, created_at
        FROM arbitrations WHERE interpretation_id=$1
    `, interpretationID).Scan(&a.ID, &a.MessageID, &a.InterpretationID, &a.GradingID,
		&a.GradingResponseID, &result, &a.RulingStatus, &a.Explanation, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get arbitration: %w", err)
	}
	a.Result = ArbitrationResult(result)
	return a, nil
}

func (s *PostgresStore) CreateBreakdown(ctx context.Context, subject BreakdownSubject) (*Breakdown, error) {
	b := &Breakdown{ID: uuid.NewString(), Subject: subject}

	var messageID, interpretationID interface{}
	switch subject.Kind {
	case SubjectMessage:
		messageID = subject.ID
	case SubjectInterpretation:
		interpretationID = subject.ID
	default:
		return nil, fmt.Errorf("unknown breakdown subject kind %q", subject.Kind)
	}

	err := s.db.QueryRowContext(ctx, `
        INSERT INTO breakdowns (id, message_id, interpretation_id)
        VALUES ($1, $2, $3)
        RETURNING created_at
    `, b.ID, messageID, interpretationID).Scan(&b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create breakdown: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) GetBreakdownBySubject(ctx context.Context, subject BreakdownSubject) (*Breakdown, error) {
	var query string
	switch subject.Kind {
	case SubjectMessage:
		query = `SELECT id, created_at FROM breakdowns WHERE message_id=$1`
	case SubjectInterpretation:
		query = `SELECT id, created_at FROM breakdowns WHERE interpretation_id=$1`
	default:
		return nil, fmt.Errorf("unknown breakdown subject kind %q", subject.Kind)
	}

	b := &Breakdown{Subject: subject}
	err := s.db.QueryRowContext(ctx, query, subject.ID).Scan(&b.ID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get breakdown: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) CreatePoint(ctx context.Context, breakdownID, text string, order int) (*Point, error) {
	p := &Point{ID: uuid.NewString(), BreakdownID: breakdownID, Text: text, Order: order}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO points (id, breakdown_id, text, point_order)
        VALUES ($1, $2, $3, $4)
    `, p.ID, p.BreakdownID, p.Text, p.Order)
	if err != nil {
		return nil, fmt.Errorf("create point: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPointsByBreakdown(ctx context.Context, breakdownID string) ([]*Point, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, breakdown_id, text, point_order
        FROM points WHERE breakdown_id=$1 ORDER BY point_order
    `, breakdownID)
	if err != nil {
		return nil, fmt.Errorf("list points: %w", err)
	}
	defer rows.Close()

	var out []*Point
	for rows.Next() {
		p := &Point{}
		if err := rows.Scan(&p.ID, &p.BreakdownID, &p.Text, &p.Order); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
