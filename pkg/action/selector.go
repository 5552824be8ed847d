package action

// Candidate names in fixed precedence order, most reliable first. A
// strategy's Priority list is always a subsequence of this order.
const (
	CandidateID            = "id"
	CandidateDataTestID    = "dataTestId"
	CandidateAriaLabel     = "ariaLabel"
	CandidateName          = "name"
	CandidateCSS           = "css"
	CandidateText          = "text"
	CandidateTextContains  = "textContains"
	CandidateXPath         = "xpath"
	CandidateXPathAbsolute = "xpathAbsolute"
	CandidatePosition      = "position"
)

// CandidateOrder is the canonical reliability ranking of selector candidates
var CandidateOrder = []string{
	CandidateID,
	CandidateDataTestID,
	CandidateAriaLabel,
	CandidateName,
	CandidateCSS,
	CandidateText,
	CandidateTextContains,
	CandidateXPath,
	CandidateXPathAbsolute,
	CandidatePosition,
}

// SelectorStrategy is a ranked bag of independent techniques for
// re-locating one DOM node. Every candidate is computed independently and
// persisted; Priority names the populated ones most-to-least reliable so a
// replay engine can fall through on stale pages.
//
// Text and TextContains are mutually exclusive: exact text for short
// labels, a prefix match for long ones.
type SelectorStrategy struct {
	ID            string `json:"id,omitempty"`
	DataTestID    string `json:"dataTestId,omitempty"`
	AriaLabel     string `json:"ariaLabel,omitempty"`
	Name          string `json:"name,omitempty"`
	CSS           string `json:"css,omitempty"`
	Text          string `json:"text,omitempty"`
	TextContains  string `json:"textContains,omitempty"`
	XPath         string `json:"xpath,omitempty"`
	XPathAbsolute string `json:"xpathAbsolute,omitempty"`
	Position      string `json:"position,omitempty"`

	Priority []string `json:"priority"`
}

// Candidate returns the value of the named candidate and whether it is
// populated
func (s *SelectorStrategy) Candidate(name string) (string, bool) {
	var v string
	switch name {
	case CandidateID:
		v = s.ID
	case CandidateDataTestID:
		v = s.DataTestID
	case CandidateAriaLabel:
		v = s.AriaLabel
	case CandidateName:
		v = s.Name
	case CandidateCSS:
		v = s.CSS
	case CandidateText:
		v = s.Text
	case CandidateTextContains:
		v = s.TextContains
	case CandidateXPath:
		v = s.XPath
	case CandidateXPathAbsolute:
		v = s.XPathAbsolute
	case CandidatePosition:
		v = s.Position
	}
	return v, v != ""
}

// Populated returns the names of populated candidates in canonical order
func (s *SelectorStrategy) Populated() []string {
	var names []string
	for _, name := range CandidateOrder {
		if _, ok := s.Candidate(name); ok {
			names = append(names, name)
		}
	}
	return names
}

// RankPriority fills Priority from the populated candidates in canonical
// order and returns the strategy
func (s *SelectorStrategy) RankPriority() *SelectorStrategy {
	s.Priority = s.Populated()
	return s
}

// Fingerprint returns the most reliable populated candidate prefixed with
// its name, or the empty string for an empty strategy. Used as the
// selector component of an action's merge identity.
func (s *SelectorStrategy) Fingerprint() string {
	for _, name := range CandidateOrder {
		if v, ok := s.Candidate(name); ok {
			return name + "=" + v
		}
	}
	return ""
}

// Empty returns true when no candidate is populated
func (s *SelectorStrategy) Empty() bool {
	for _, name := range CandidateOrder {
		if _, ok := s.Candidate(name); ok {
			return false
		}
	}
	return true
}
