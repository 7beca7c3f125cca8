package discussion

import "strings"

// ReplyLabel renders an author as a reply target: "@handle" when a handle is
// known, otherwise the display name.
func ReplyLabel(a Author) string {
	if a == nil {
		return ""
	}
	if h := normalizeHandle(a.Handle()); h != "" {
		return "@" + h
	}
	return strings.TrimSpace(a.Name())
}

func normalizeHandle(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "@")
	return strings.ToLower(strings.TrimSpace(h))
}

// ReplyTargets maps comment id to the label of the author it replies to.
// Comments whose parent is absent from the set, or is themselves, get no entry.
func ReplyTargets(comments []Comment) map[string]string {
	byID := make(map[string]Comment, len(comments))
	for _, c := range comments {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = c
		}
	}
	labels := make(map[string]string)
	for _, c := range comments {
		if c.ParentID == "" || c.ParentID == c.ID {
			continue
		}
		parent, ok := byID[c.ParentID]
		if !ok {
			continue
		}
		if label := ReplyLabel(parent.Author); label != "" {
			labels[c.ID] = label
		}
	}
	return labels
}

// AnnotateReplyTargets fills ReplyToLabel in place.
func AnnotateReplyTargets(comments []OrderedComment) {
	plain := make([]Comment, len(comments))
	for i := range comments {
		plain[i] = comments[i].Comment
	}
	labels := ReplyTargets(plain)
	for i := range comments {
		comments[i].ReplyToLabel = labels[comments[i].ID]
	}
}
