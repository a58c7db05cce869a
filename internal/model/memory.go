// Package model defines the core memory data types.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// MemoryType categorizes what a chunk is about. It is derived from the
// chunk content, never supplied by the caller.
type MemoryType string

const (
	MemoryEmotional      MemoryType = "emotional"
	MemoryFactual        MemoryType = "factual"
	MemoryConversational MemoryType = "conversational"
	MemoryExperiential   MemoryType = "experiential"
)

// SourceType records where a memory originally came from.
type SourceType string

const (
	SourceText     SourceType = "text"
	SourceVoice    SourceType = "voice"
	SourcePhoto    SourceType = "photo"
	SourceChat     SourceType = "chat"
	SourceDocument SourceType = "document"
)

// RetentionPolicy governs how long a chunk stays eligible for retrieval.
type RetentionPolicy string

const (
	RetentionShortTerm RetentionPolicy = "short_term" // 30 days
	RetentionMidTerm   RetentionPolicy = "mid_term"   // 365 days
	RetentionLongTerm  RetentionPolicy = "long_term"  // forever
)

// ValidMemoryTypes are the allowed memory types.
var ValidMemoryTypes = map[MemoryType]bool{
	MemoryEmotional:      true,
	MemoryFactual:        true,
	MemoryConversational: true,
	MemoryExperiential:   true,
}

// ValidSourceTypes are the allowed source types.
var ValidSourceTypes = map[SourceType]bool{
	SourceText:     true,
	SourceVoice:    true,
	SourcePhoto:    true,
	SourceChat:     true,
	SourceDocument: true,
}

// ValidRetentionPolicies are the allowed retention policies.
var ValidRetentionPolicies = map[RetentionPolicy]bool{
	RetentionShortTerm: true,
	RetentionMidTerm:   true,
	RetentionLongTerm:  true,
}

// Window returns the retention window for the policy. ok is false for
// long_term, which never expires.
func (p RetentionPolicy) Window() (d time.Duration, ok bool) {
	switch p {
	case RetentionShortTerm:
		return 30 * 24 * time.Hour, true
	case RetentionMidTerm:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// Expired reports whether a chunk created at createdAt has outlived the
// policy window as of now. Expiry is soft: expired chunks are excluded
// from retrieval but not deleted.
func (p RetentionPolicy) Expired(createdAt, now time.Time) bool {
	window, ok := p.Window()
	if !ok {
		return false
	}
	return now.Sub(createdAt) > window
}

// Content length bounds enforced at chunk construction.
const (
	MinContentLen = 10
	MaxContentLen = 10000
)

// Chunk is a bounded segment of source text stored and indexed
// independently. Chunks are immutable value records: once created, only
// scope reassignment is permitted.
type Chunk struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"owner_id"`
	ScopeID         string          `json:"scope_id"`
	Content         string          `json:"content"`
	Embedding       []float32       `json:"embedding,omitempty"`
	ContentHash     string          `json:"content_hash"`
	MemoryType      MemoryType      `json:"memory_type"`
	SourceType      SourceType      `json:"source_type"`
	RetentionPolicy RetentionPolicy `json:"retention_policy"`
	Emotions        []string        `json:"emotions,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// HashContent returns the deterministic content hash used for
// de-duplication and embedding-cache keys.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Validate checks the chunk's construction invariants.
func (c *Chunk) Validate() error {
	var problems []string

	if c.ID == "" {
		problems = append(problems, "id is required")
	}
	if c.OwnerID == "" {
		problems = append(problems, "owner id is required")
	}
	if c.ScopeID == "" {
		problems = append(problems, "scope id is required")
	}
	trimmed := strings.TrimSpace(c.Content)
	if len(trimmed) < MinContentLen {
		problems = append(problems, fmt.Sprintf("content must be at least %d characters", MinContentLen))
	}
	if len(c.Content) > MaxContentLen {
		problems = append(problems, fmt.Sprintf("content exceeds %d characters", MaxContentLen))
	}
	if !ValidMemoryTypes[c.MemoryType] {
		problems = append(problems, fmt.Sprintf("invalid memory type %q", c.MemoryType))
	}
	if !ValidSourceTypes[c.SourceType] {
		problems = append(problems, fmt.Sprintf("invalid source type %q", c.SourceType))
	}
	if !ValidRetentionPolicies[c.RetentionPolicy] {
		problems = append(problems, fmt.Sprintf("invalid retention policy %q", c.RetentionPolicy))
	}
	if c.ContentHash != "" && c.ContentHash != HashContent(c.Content) {
		problems = append(problems, "content hash does not match content")
	}

	if len(problems) > 0 {
		return fmt.Errorf("chunk validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Turn is one user/assistant exchange inside a context window. AIText is
// empty while the turn is pending a response.
type Turn struct {
	UserText  string    `json:"user_text"`
	AIText    string    `json:"ai_text,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ContextSnapshot is the persisted remnant of a cleared context window.
type ContextSnapshot struct {
	OwnerID     string    `json:"owner_id"`
	ScopeID     string    `json:"scope_id"`
	SessionID   string    `json:"session_id"`
	Summary     string    `json:"summary"`
	LastUpdated time.Time `json:"last_updated"`
}

// SourceTypeForMIME maps a MIME type to the memory source it implies.
// Unknown types are treated as documents.
func SourceTypeForMIME(mime string) SourceType {
	lower := strings.ToLower(mime)
	switch {
	case strings.HasPrefix(lower, "text/"):
		return SourceText
	case strings.HasPrefix(lower, "audio/"):
		return SourceVoice
	case strings.HasPrefix(lower, "image/"):
		return SourcePhoto
	case strings.Contains(lower, "json"), strings.Contains(lower, "chat"):
		return SourceChat
	default:
		return SourceDocument
	}
}
