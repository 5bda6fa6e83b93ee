package naming

import (
	"strings"

	"github.com/scanshelf/scanshelf/internal/util"
)

// DefaultExtension is used when a policy does not name one.
const DefaultExtension = ".jpg"

// Policy controls how captured media is named.
type Policy struct {
	// UseSecondaryIdentifier names media by the mapped product code when one exists.
	UseSecondaryIdentifier bool `json:"use_secondary_identifier"`
	// Label is an optional name component appended as <id>_<label>.
	Label string `json:"label,omitempty" validate:"max=32"`
	// Extension is the file extension of new captures, including the dot.
	Extension string `json:"extension" validate:"required,extension"`
}

// DefaultPolicy returns the policy used before the user changes anything.
func DefaultPolicy() Policy {
	return Policy{Extension: DefaultExtension}
}

// Normalized returns a copy with the extension lower-cased and defaulted.
func (p Policy) Normalized() Policy {
	p.Extension = strings.ToLower(strings.TrimSpace(p.Extension))
	if p.Extension == "" {
		p.Extension = DefaultExtension
	} else if !strings.HasPrefix(p.Extension, ".") {
		p.Extension = "." + p.Extension
	}
	p.Label = strings.TrimSpace(p.Label)
	return p
}

// labelSuffix is the normalized label component, or "".
func (p Policy) labelSuffix() string {
	if l := util.NormalizeLabel(p.Label); l != "" {
		return "_" + l
	}
	return ""
}
