package models

import (
	"strings"
	"time"

	"vibecall/backend/internal/apperror"
	"vibecall/backend/internal/config"
)

// Gender is both a profile attribute and a partner preference.
type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non-binary"
	GenderAny       Gender = "any"
)

// AgeRange is an inclusive partner age bound.
type AgeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (r AgeRange) Contains(age int) bool {
	return age >= r.Min && age <= r.Max
}

func (r AgeRange) Intersects(o AgeRange) bool {
	return r.Min <= o.Max && o.Min <= r.Max
}

// Preferences describe who a queued user is willing to be paired with.
type Preferences struct {
	AnonymousMode    bool      `json:"anonymousMode"`
	AgeRange         *AgeRange `json:"ageRange,omitempty"`
	GenderPreference Gender    `json:"genderPreference,omitempty"`
	Interests        []string  `json:"interests,omitempty"`
}

// Validate rejects malformed preferences, naming the offending field.
func (p Preferences) Validate() error {
	if r := p.AgeRange; r != nil {
		if r.Min < config.MinAge {
			return apperror.Validation("ageRange", "minimum age must be at least 18")
		}
		if r.Max < r.Min || r.Max > config.MaxAge {
			return apperror.Validation("ageRange", "maximum age must be between minimum age and 120")
		}
	}
	switch p.GenderPreference {
	case "", GenderMale, GenderFemale, GenderNonBinary, GenderAny:
	default:
		return apperror.Validation("genderPreference", "must be one of male, female, non-binary, any")
	}
	if len(p.Interests) > config.MaxInterests {
		return apperror.Validation("interests", "at most 10 interests are allowed")
	}
	for _, in := range p.Interests {
		if strings.TrimSpace(in) == "" {
			return apperror.Validation("interests", "interests must not be blank")
		}
	}
	return nil
}

// AcceptsGender reports whether a partner of gender g satisfies the preference.
// An unknown partner gender only satisfies "any".
func (p Preferences) AcceptsGender(g Gender) bool {
	if p.GenderPreference == "" || p.GenderPreference == GenderAny {
		return true
	}
	return g == p.GenderPreference
}

// Profile is the part of the external user profile the queue needs for compatibility.
type Profile struct {
	Age    int
	Gender Gender
}

// QueueEntry is one user's pending request to be matched.
type QueueEntry struct {
	UserID string
	// Seq identifies this admission; a re-join after withdraw gets a new Seq.
	Seq             uint64
	JoinedAt        time.Time
	LastHeartbeatAt time.Time
	Profile         Profile
	Preferences     Preferences
}

// WaitedFor returns how long the entry has been queued at now.
func (e QueueEntry) WaitedFor(now time.Time) time.Duration {
	return now.Sub(e.JoinedAt)
}

// Compatible reports mutual compatibility of two entries: each side's gender preference
// accepts the other, and the age constraints agree. When the partner's age is known it must
// fall in the range; otherwise both ranges (if given) must intersect.
func Compatible(a, b QueueEntry) bool {
	if a.UserID == b.UserID {
		return false
	}
	if !a.Preferences.AcceptsGender(b.Profile.Gender) || !b.Preferences.AcceptsGender(a.Profile.Gender) {
		return false
	}
	return agesAgree(a, b) && agesAgree(b, a)
}

func agesAgree(self, other QueueEntry) bool {
	r := self.Preferences.AgeRange
	if r == nil {
		return true
	}
	if other.Profile.Age > 0 {
		return r.Contains(other.Profile.Age)
	}
	if o := other.Preferences.AgeRange; o != nil {
		return r.Intersects(*o)
	}
	return true
}

// SharedInterests returns the case-insensitive intersection of both interest lists,
// in a's order.
func SharedInterests(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, in := range b {
		seen[strings.ToLower(strings.TrimSpace(in))] = struct{}{}
	}
	var out []string
	for _, in := range a {
		key := strings.ToLower(strings.TrimSpace(in))
		if _, ok := seen[key]; ok {
			out = append(out, in)
			delete(seen, key)
		}
	}
	return out
}
