package rules

import "strings"

// attackPrefix marks framework-classification tags in rule metadata,
// e.g. "attack.t1078" (technique) or "attack.credential_access" (tactic).
const attackPrefix = "attack."

// ExtractAttackTags derives ATT&CK tactic and technique identifiers from a
// rule's tag list. Technique tags follow "attack.t####" and are normalized
// to their canonical "T####" form (sub-techniques like "attack.t1078.004"
// included); every other attack-prefixed tag is treated as a tactic name.
// Tags without the attack prefix contribute nothing.
func ExtractAttackTags(tags []string) (tactics, techniques []string) {
	for _, tag := range tags {
		if !strings.HasPrefix(tag, attackPrefix) {
			continue
		}
		rest := tag[len(attackPrefix):]
		if rest == "" {
			continue
		}
		if isTechniqueTag(rest) {
			techniques = append(techniques, "T"+rest[1:])
		} else {
			tactics = append(tactics, rest)
		}
	}
	return tactics, techniques
}

// isTechniqueTag reports whether an attack tag suffix names a technique:
// a leading 't' followed by at least four digits, optionally a dotted
// sub-technique suffix.
func isTechniqueTag(rest string) bool {
	if len(rest) < 5 || rest[0] != 't' {
		return false
	}
	digits := 0
	for _, r := range rest[1:] {
		if r >= '0' && r <= '9' {
			digits++
			continue
		}
		if r == '.' && digits >= 4 {
			continue
		}
		return false
	}
	return digits >= 4
}
