package mqtt

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Shadow constants.
const (
	// DefaultShadowTimeout is the confirmation deadline when the caller
	// does not supply one.
	DefaultShadowTimeout = 5 * time.Second

	// clientTokenBytes is the number of random bytes per client token
	// (rendered as hex, so tokens are twice this many characters).
	clientTokenBytes = 8
)

// Session is the transport surface the shadow client needs.
// *Client satisfies it; tests substitute a mock.
type Session interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler MessageHandler) error
}

// ShadowClient maintains the cloud shadow's desired state for things.
//
// Updates are fire-and-confirm: UpdateDesired publishes the desired
// document and returns immediately; the outcome arrives later through the
// caller's callback when the cloud answers on update/accepted or
// update/rejected, or when the deadline passes. Correlation uses the
// client token the cloud echoes back verbatim.
//
// Confirmations are informational. The shadow service reconciles desired
// and reported state on its own, so an unconfirmed update means delayed
// visibility, not a lost actuation.
type ShadowClient struct {
	session Session

	// pending maps in-flight client tokens to their resolution state.
	// Entries leave the table exactly once: confirmation, rejection, or
	// deadline expiry, whichever lands first.
	mu         sync.Mutex
	pending    map[string]*pendingShadowUpdate
	subscribed map[string]bool
}

// pendingShadowUpdate is one in-flight desired-state update.
type pendingShadowUpdate struct {
	thing    string
	timer    *time.Timer
	callback func(error)
}

// shadowUpdateDocument is the published desired-state fragment.
type shadowUpdateDocument struct {
	State       shadowStateDocument `json:"state"`
	ClientToken string              `json:"clientToken"`
}

type shadowStateDocument struct {
	Desired shadowDesiredDocument `json:"desired"`
}

type shadowDesiredDocument struct {
	SwitchStatus int `json:"switch_status"`
}

// shadowResponse is the slice of the cloud's answer the client consumes.
// Accepted responses echo the token; rejected responses add code and message.
type shadowResponse struct {
	ClientToken string `json:"clientToken"`
	Code        int    `json:"code"`
	Message     string `json:"message"`
}

// NewShadowClient creates a shadow client over an established session.
func NewShadowClient(session Session) *ShadowClient {
	return &ShadowClient{
		session:    session,
		pending:    make(map[string]*pendingShadowUpdate),
		subscribed: make(map[string]bool),
	}
}

// UpdateDesired publishes a desired switch position for the named thing.
//
// The call returns once the update is handed to the transport. The
// callback fires exactly once from a timer or dispatch goroutine with:
//   - nil when the cloud accepts the update
//   - ErrShadowRejected (wrapped, with code and message) on rejection
//   - ErrShadowTimeout when no answer arrives within the timeout
//
// A zero or negative timeout selects DefaultShadowTimeout. Responses
// arriving after expiry are ignored.
//
// Parameters:
//   - thing: Cloud thing name (the device name)
//   - status: Desired switch position, 0 or 1
//   - timeout: Confirmation deadline
//   - callback: Outcome receiver, may be nil when the caller does not care
//
// Returns:
//   - error: If the update could not be published at all
func (s *ShadowClient) UpdateDesired(thing string, status int, timeout time.Duration, callback func(error)) error {
	if thing == "" {
		return fmt.Errorf("%w: thing name is required", ErrInvalidTopic)
	}
	if status != 0 && status != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidShadowStatus, status)
	}
	if timeout <= 0 {
		timeout = DefaultShadowTimeout
	}
	if callback == nil {
		callback = func(error) {}
	}

	if err := s.ensureSubscribed(thing); err != nil {
		return err
	}

	token, err := newClientToken()
	if err != nil {
		return err
	}

	doc := shadowUpdateDocument{
		State: shadowStateDocument{
			Desired: shadowDesiredDocument{SwitchStatus: status},
		},
		ClientToken: token,
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding shadow update: %w", err)
	}

	// Register before publishing so a fast confirmation cannot race the
	// table entry. The timer may fire while we still hold the entry; expiry
	// and confirmation both resolve through take(), so only one wins.
	s.mu.Lock()
	p := &pendingShadowUpdate{
		thing:    thing,
		callback: callback,
	}
	p.timer = time.AfterFunc(timeout, func() { s.expire(token) })
	s.pending[token] = p
	s.mu.Unlock()

	if err := s.session.Publish(Topics{}.ShadowUpdate(thing), payload, 1, false); err != nil {
		if p := s.take(token); p != nil {
			p.timer.Stop()
		}
		return fmt.Errorf("publishing shadow update for %s: %w", thing, err)
	}

	return nil
}

// PendingUpdates returns the number of unresolved updates, for diagnostics.
func (s *ShadowClient) PendingUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ensureSubscribed establishes the response subscriptions for a thing.
// Subscribing twice is harmless, so the fast path only consults the map.
func (s *ShadowClient) ensureSubscribed(thing string) error {
	s.mu.Lock()
	done := s.subscribed[thing]
	s.mu.Unlock()
	if done {
		return nil
	}

	topics := Topics{}
	if err := s.session.Subscribe(topics.ShadowUpdateAccepted(thing), 1, s.handleAccepted); err != nil {
		return fmt.Errorf("subscribing to shadow responses for %s: %w", thing, err)
	}
	if err := s.session.Subscribe(topics.ShadowUpdateRejected(thing), 1, s.handleRejected); err != nil {
		return fmt.Errorf("subscribing to shadow responses for %s: %w", thing, err)
	}

	s.mu.Lock()
	s.subscribed[thing] = true
	s.mu.Unlock()
	return nil
}

// handleAccepted resolves a pending update confirmed by the cloud.
// Responses without a matching token belong to expired updates or other
// writers and are ignored.
func (s *ShadowClient) handleAccepted(topic string, payload []byte) error {
	resp, err := decodeShadowResponse(payload)
	if err != nil {
		return fmt.Errorf("decoding shadow confirmation on %s: %w", topic, err)
	}
	if resp.ClientToken == "" {
		return nil
	}

	p := s.take(resp.ClientToken)
	if p == nil {
		return nil
	}
	p.timer.Stop()
	p.callback(nil)
	return nil
}

// handleRejected resolves a pending update the cloud refused.
func (s *ShadowClient) handleRejected(topic string, payload []byte) error {
	resp, err := decodeShadowResponse(payload)
	if err != nil {
		return fmt.Errorf("decoding shadow rejection on %s: %w", topic, err)
	}
	if resp.ClientToken == "" {
		return nil
	}

	p := s.take(resp.ClientToken)
	if p == nil {
		return nil
	}
	p.timer.Stop()
	p.callback(fmt.Errorf("%w: code %d: %s", ErrShadowRejected, resp.Code, resp.Message))
	return nil
}

// expire resolves a pending update whose deadline passed unanswered.
func (s *ShadowClient) expire(token string) {
	p := s.take(token)
	if p == nil {
		return
	}
	p.callback(fmt.Errorf("%w: thing %s", ErrShadowTimeout, p.thing))
}

// take removes and returns the pending update for a token, or nil if the
// token was already resolved. Exactly one caller wins.
func (s *ShadowClient) take(token string) *pendingShadowUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[token]
	if !ok {
		return nil
	}
	delete(s.pending, token)
	return p
}

// decodeShadowResponse parses the token-bearing slice of a shadow response.
func decodeShadowResponse(payload []byte) (shadowResponse, error) {
	var resp shadowResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return shadowResponse{}, err
	}
	return resp, nil
}

// newClientToken generates a random correlation token.
func newClientToken() (string, error) {
	b := make([]byte, clientTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating client token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
