// ProfileConfig: the singleton site profile document.
package types

// Profile document keys. All keys are optional; the getters below return the
// documented default when a key is absent or holds a value of the wrong type.
const (
	ProfileSiteTitle  = "siteTitle"  // default DefaultSiteTitle
	ProfileHeadline   = "headline"   // default ""
	ProfileBio        = "bio"        // default ""
	ProfileRoles      = "roles"      // default empty list
	ProfileEmail      = "email"      // default ""
	ProfilePhone      = "phone"      // default ""
	ProfileEducation  = "education"  // default empty list
	ProfileExperience = "experience" // default empty list
	ProfileAwards     = "awards"     // default empty list
	ProfileTravel     = "travel"     // map with "countries" and "provinces" lists
)

// DefaultSiteTitle is rendered when the profile has no siteTitle.
const DefaultSiteTitle = "portfolio"

// ProfileConfig wraps the profile document with typed, defaulted accessors so
// an absent key never reaches presentation as a nil value.
type ProfileConfig struct {
	Fields Document
}

// TimelineEntry is one row of the education, experience, or awards lists.
type TimelineEntry struct {
	Title       string `json:"title"`
	Place       string `json:"place"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

// Has reports whether key is present.
func (p ProfileConfig) Has(key string) bool {
	_, ok := p.Fields[key]
	return ok
}

// String returns the string at key, or def when absent or not a string.
func (p ProfileConfig) String(key, def string) string {
	if s, ok := p.Fields[key].(string); ok {
		return s
	}
	return def
}

// Strings returns the string list at key, or def when absent. Non-string
// elements are skipped. The result is never nil.
func (p ProfileConfig) Strings(key string, def []string) []string {
	if list, ok := stringList(p.Fields[key]); ok {
		return list
	}
	if def == nil {
		return []string{}
	}
	return append([]string(nil), def...)
}

// Entries returns the timeline list at key; missing entry fields are "".
func (p ProfileConfig) Entries(key string) []TimelineEntry {
	entries := []TimelineEntry{}
	for _, raw := range anyList(p.Fields[key]) {
		m, ok := asMap(raw)
		if !ok {
			continue
		}
		str := func(k string) string {
			s, _ := m[k].(string)
			return s
		}
		entries = append(entries, TimelineEntry{
			Title:       str("title"),
			Place:       str("place"),
			Period:      str("period"),
			Description: str("description"),
		})
	}
	return entries
}

func (p ProfileConfig) SiteTitle() string { return p.String(ProfileSiteTitle, DefaultSiteTitle) }
func (p ProfileConfig) Headline() string { return p.String(ProfileHeadline, "") }
func (p ProfileConfig) Bio() string { return p.String(ProfileBio, "") }
func (p ProfileConfig) Email() string { return p.String(ProfileEmail, "") }
func (p ProfileConfig) Phone() string { return p.String(ProfilePhone, "") }
func (p ProfileConfig) Roles() []string { return p.Strings(ProfileRoles, nil) }
func (p ProfileConfig) Education() []TimelineEntry { return p.Entries(ProfileEducation) }
func (p ProfileConfig) Experience() []TimelineEntry { return p.Entries(ProfileExperience) }
func (p ProfileConfig) Awards() []TimelineEntry { return p.Entries(ProfileAwards) }

// Countries returns travel.countries.
func (p ProfileConfig) Countries() []string {
	travel, _ := asMap(p.Fields[ProfileTravel])
	list, _ := stringList(travel["countries"])
	if list == nil {
		return []string{}
	}
	return list
}

// Provinces returns travel.provinces.
func (p ProfileConfig) Provinces() []string {
	travel, _ := asMap(p.Fields[ProfileTravel])
	list, _ := stringList(travel["provinces"])
	if list == nil {
		return []string{}
	}
	return list
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

func anyList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []map[string]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out
	default:
		return nil
	}
}

func stringList(v any) ([]string, bool) {
	switch l := v.(type) {
	case []string:
		return append([]string{}, l...), true
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
