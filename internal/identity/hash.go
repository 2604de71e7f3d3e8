package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// canonicalField encodes one field as <8-hex-byte-length>:<bytes> so that no
// delimiter collision can make two distinct tuples hash identically. This is
// the one canonical form used everywhere a content hash is computed; it must
// never change once agents exist in the wild.
func canonicalField(s string) string {
	return fmt.Sprintf("%08x:%s", len(s), s)
}

// canonicalSequence joins a sequence of fields in order — order matters for
// skill lists and tradeoff lists, these are sequences, not sets.
func canonicalSequence(fields []string) string {
	var b strings.Builder
	for _, f := range fields {
		b.WriteString(canonicalField(f))
	}
	return b.String()
}

func skillText(s Skill) string {
	if s.Name != "" {
		return "name:" + s.Name
	}
	return "text:" + s.Text
}

func hashHex(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHashRole computes a Role's id over (skills, desired_outcome, description).
func ContentHashRole(skills []Skill, desiredOutcome, description string) string {
	skillStrs := make([]string, len(skills))
	for i, s := range skills {
		skillStrs[i] = skillText(s)
	}
	return hashHex(
		canonicalField("skills"), canonicalSequence(skillStrs),
		canonicalField("desired_outcome"), canonicalField(desiredOutcome),
		canonicalField("description"), canonicalField(description),
	)
}

// ContentHashObjective computes an Objective's id over (acceptable_tradeoffs,
// unacceptable_tradeoffs, description).
func ContentHashObjective(acceptable, unacceptable []string, description string) string {
	return hashHex(
		canonicalField("acceptable"), canonicalSequence(acceptable),
		canonicalField("unacceptable"), canonicalSequence(unacceptable),
		canonicalField("description"), canonicalField(description),
	)
}

// ContentHashAgent computes an Agent's id over (role_id, objective_id). Same
// role+objective pairing always produces the same id, deliberately.
func ContentHashAgent(roleID, objectiveID string) string {
	return hashHex(
		canonicalField("role_id"), canonicalField(roleID),
		canonicalField("objective_id"), canonicalField(objectiveID),
	)
}

// ShortHash returns a short display prefix of an id (8 hex chars, or the
// whole string if shorter).
func ShortHash(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
