package models

// Tag identifies the HTML element kind a reference was extracted from
type Tag string

const (
	TagAnchor Tag = "a"
	TagLink   Tag = "link"
	TagScript Tag = "script"
)

// Attr returns the attribute name that carries the reference for this tag kind,
// or "" for unrecognized tags
func (t Tag) Attr() string {
	switch t {
	case TagAnchor, TagLink:
		return "href"
	case TagScript:
		return "src"
	}
	return ""
}

// Reference is one candidate hyperlink/resource discovered inside a page,
// together with its probe outcome. A reference is probed at most once per
// seed; later occurrences of the same absolute URL only extend Occurrences.
type Reference struct {
	Tag       Tag    `yaml:"tag"`
	AbsURL    string `yaml:"url"`
	AbsPath   string `yaml:"path,omitempty"` // Site-relative path; set only for internal references
	Internal  bool   `yaml:"internal"`
	Hyperlink bool   `yaml:"hyperlink"` // True only for http/https schemes

	// Probe outcome: exactly one of Status/Failure is set once probed.
	Status  int    `yaml:"status,omitempty"`
	Failure string `yaml:"failure,omitempty"`

	// Occurrences lists the page paths this exact reference was found on,
	// one entry per link instance, in discovery order.
	Occurrences []string `yaml:"occurrences"`
}

// Probed reports whether the reference has a recorded probe outcome
func (r *Reference) Probed() bool {
	return r.Status != 0 || r.Failure != ""
}

// OK reports whether the probe recorded a 2xx status
func (r *Reference) OK() bool {
	return r.Failure == "" && r.Status >= 200 && r.Status < 300
}
