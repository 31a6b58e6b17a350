package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a threadsafe in-memory Store used in tests and local
// development.
type InMemoryStore struct {
	mu sync.RWMutex

	nextUserID      int64
	users           map[int64]*User
	conversations   map[string]*Conversation
	participations  map[string][]*Participation // by convoID
	messages        map[string]*Message
	interpretations map[string]*Interpretation
	gradings        map[string]*Grading // by grading ID
	responses       map[string]*GradingResponse
	arbitrations    map[string]*Arbitration // by interpretation ID
	breakdowns      map[string]*Breakdown
	points          map[string][]*Point // by breakdown ID

	now func() time.Time
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:           make(map[int64]*User),
		conversations:   make(map[string]*Conversation),
		participations:  make(map[string][]*Participation),
		messages:        make(map[string]*Message),
		interpretations: make(map[string]*Interpretation),
		gradings:        make(map[string]*Grading),
		responses:       make(map[string]*GradingResponse),
		arbitrations:    make(map[string]*Arbitration),
		breakdowns:      make(map[string]*Breakdown),
		points:          make(map[string][]*Point),
		now:             time.Now,
	}
}

func (s *InMemoryStore) CreateUser(ctx context.Context, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u := &User{ID: s.nextUserID, Name: name, CreatedAt: s.now()}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *InMemoryStore) CreateConversation(ctx context.Context, title string, maxAttempts, participantLimit int) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &Conversation{
		ID:               uuid.NewString(),
		Title:            title,
		MaxAttempts:      maxAttempts,
		ParticipantLimit: participantLimit,
		CreatedAt:        s.now(),
	}
	s.conversations[c.ID] = c
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) GetConversationByID(ctx context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *InMemoryStore) ListConversations(ctx context.Context) ([]*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) AddParticipant(ctx context.Context, convoID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participations[convoID] {
		if p.UserID == userID {
			return ErrAlreadyExists
		}
	}
	s.participations[convoID] = append(s.participations[convoID], &Participation{UserID: userID, ConvoID: convoID})
	return nil
}

func (s *InMemoryStore) CountParticipants(ctx context.Context, convoID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.participations[convoID]), nil
}

func (s *InMemoryStore) ListParticipants(ctx context.Context, convoID string) ([]*Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Participation, 0, len(s.participations[convoID]))
	for _, p := range s.participations[convoID] {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) CreateMessage(ctx context.Context, text string, userID int64, convoID string, replyingTo *string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &Message{
		ID:                  uuid.NewString(),
		Text:                text,
		UserID:              userID,
		ConvoID:             convoID,
		ReplyingToMessageID: replyingTo,
		CreatedAt:           s.now(),
	}
	s.messages[m.ID] = m
	cp := *m
	return &cp, nil
}

func (s *InMemoryStore) GetMessageByID(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *InMemoryStore) ListMessagesByConversation(ctx context.Context, convoID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Message
	for _, m := range s.messages {
		if m.ConvoID == convoID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) CreateInterpretation(ctx context.Context, messageID string, userID int64, text string, attemptNumber int) (*Interpretation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := &Interpretation{
		ID:            uuid.NewString(),
		MessageID:     messageID,
		UserID:        userID,
		Text:          text,
		AttemptNumber: attemptNumber,
		CreatedAt:     s.now(),
	}
	s.interpretations[in.ID] = in
	cp := *in
	return &cp, nil
}

func (s *InMemoryStore) GetInterpretationByID(ctx context.Context, id string) (*Interpretation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.interpretations[id]
	if !ok {
		return nil, nil
	}
	cp := *in
	return &cp, nil
}

func (s *InMemoryStore) ListInterpretations(ctx context.Context, messageID string, userID int64) ([]*Interpretation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Interpretation
	for _, in := range s.interpretations {
		if in.MessageID == messageID && in.UserID == userID {
			cp := *in
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber > out[j].AttemptNumber })
	return out, nil
}

func (s *InMemoryStore) CreateGrading(ctx context.Context, g *Grading) (*Grading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	created := *g
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	s.gradings[created.ID] = &created
	cp := created
	return &cp, nil
}

func (s *InMemoryStore) GetGradingByID(ctx context.Context, id string) (*Grading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gradings[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *InMemoryStore) GetGradingByInterpretation(ctx context.Context, interpretationID string) (*Grading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.gradings {
		if g.InterpretationID == interpretationID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) UpdateGrading(ctx context.Context, id string, update GradingUpdate) (*Grading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gradings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Status != nil {
		g.Status = *update.Status
	}
	if update.Notes != nil {
		g.Notes = *update.Notes
	}
	cp := *g
	return &cp, nil
}

func (s *InMemoryStore) CreateGradingResponse(ctx context.Context, gradingID, text string) (*GradingResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.responses {
		if r.GradingID == gradingID {
			return nil, ErrAlreadyExists
		}
	}
	r := &GradingResponse{
		ID:        uuid.NewString(),
		GradingID: gradingID,
		Text:      text,
		CreatedAt: s.now(),
	}
	s.responses[r.ID] = r
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) GetGradingResponseByGrading(ctx context.Context, gradingID string) (*GradingResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.responses {
		if r.GradingID == gradingID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreateArbitration(ctx context.Context, a *Arbitration) (*Arbitration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.arbitrations[a.InterpretationID]; ok {
		return nil, ErrAlreadyExists
	}
	created := *a
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	s.arbitrations[created.InterpretationID] = &created
	cp := created
	return &cp, nil
}

func (s *InMemoryStore) GetArbitrationByInterpretation(ctx context.Context, interpretationID string) (*Arbitration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arbitrations[interpretationID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) CreateBreakdown(ctx context.Context, subject BreakdownSubject) (*Breakdown, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &Breakdown{ID: uuid.NewString(), Subject: subject, CreatedAt: s.now()}
	s.breakdowns[b.ID] = b
	cp := *b
	return &cp, nil
}

func (s *InMemoryStore) GetBreakdownBySubject(ctx context.Context, subject BreakdownSubject) (*Breakdown, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.breakdowns {
		if b.Subject == subject {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) CreatePoint(ctx context.Context, breakdownID, text string, order int) (*Point, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &Point{ID: uuid.NewString(), BreakdownID: breakdownID, Text: text, Order: order}
	s.points[breakdownID] = append(s.points[breakdownID], p)
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) ListPointsByBreakdown(ctx context.Context, breakdownID string) ([]*Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Point, 0, len(s.points[breakdownID]))
	for _, p := range s.points[breakdownID] {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
