package event

import (
	"time"
)

const (
	// TypePatchSetCreated is sent when a new change has been uploaded, or
	// a new patch set has been uploaded to an existing change
	TypePatchSetCreated = "patchset-created"

	// TypeCommentAdded is sent when a review comment has been posted on
	// a change
	TypeCommentAdded = "comment-added"

	// TypeChangeMerged is sent when a change has been merged into the git
	// repository
	TypeChangeMerged = "change-merged"

	// TypeChangeAbandoned is sent when a change has been abandoned
	TypeChangeAbandoned = "change-abandoned"

	// TypeChangeRestored is sent when an abandoned change has been restored
	TypeChangeRestored = "change-restored"

	// TypeRefUpdated is sent when a reference is updated in a git repository
	TypeRefUpdated = "ref-updated"

	// TypeReviewerAdded is sent when a reviewer is added to a change
	TypeReviewerAdded = "reviewer-added"

	// TypeTopicChanged is sent when the topic of a change has been changed
	TypeTopicChanged = "topic-changed"
)

// Account describes a user account inside an Event
type Account struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Change describes a change inside an Event
type Change struct {
	Project       string   `json:"project"`
	Branch        string   `json:"branch"`
	Topic         string   `json:"topic"`
	ChangeID      string   `json:"id"`
	Number        int64    `json:"number"`
	Subject       string   `json:"subject"`
	Owner         *Account `json:"owner"`
	URL           string   `json:"url"`
	CommitMessage string   `json:"commitMessage"`
	Status        string   `json:"status"`
}

// PatchSet describes a patch set inside an Event
type PatchSet struct {
	Number   int64    `json:"number"`
	Revision string   `json:"revision"`
	Parents  []string `json:"parents"`
	Ref      string   `json:"ref"`
	Uploader *Account `json:"uploader"`
	Author   *Account `json:"author"`
}

// RefUpdate describes a ref inside an Event
type RefUpdate struct {
	OldRev  string `json:"oldRev"`
	NewRev  string `json:"newRev"`
	RefName string `json:"refName"`
	Project string `json:"project"`
}

// Approval describes a review approval inside an Event
type Approval struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Value       string   `json:"value"`
	OldValue    string   `json:"oldValue"`
	By          *Account `json:"by"`
}

// Event is one structured record produced from a single line of
// `gerrit stream-events` output. The Type field (the JSON `type` key)
// selects which of the optional sub-records are present; unknown kinds
// still parse and carry their payload in Raw for plugin authors.
//
// Events are immutable after parse.
type Event struct {
	// ID is an internal correlation id assigned at parse time. It never
	// comes from the wire; it exists so that log lines across the engine
	// and actions can be tied back to one incoming event.
	ID string `json:"-"`

	// Received is when the event was parsed off the stream.
	Received time.Time `json:"-"`

	Type string `json:"type"`

	Change    *Change    `json:"change"`
	PatchSet  *PatchSet  `json:"patchSet"`
	RefUpdate *RefUpdate `json:"refUpdate"`

	Author    *Account `json:"author"`
	Submitter *Account `json:"submitter"`
	Uploader  *Account `json:"uploader"`
	Reviewer  *Account `json:"reviewer"`
	Abandoner *Account `json:"abandoner"`
	Restorer  *Account `json:"restorer"`
	Changer   *Account `json:"changer"`

	Approvals []Approval `json:"approvals"`
	Comment   string     `json:"comment"`
	Reason    string     `json:"reason"`
	NewRev    string     `json:"newRev"`
	OldTopic  string     `json:"oldTopic"`

	CreatedOn int64 `json:"eventCreatedOn"`

	// Raw holds every top-level field of the original JSON object,
	// including ones no typed field covers.
	Raw map[string]interface{} `json:"-"`
}

// Project returns the project the event refers to, derived from the
// change record or the ref-update record depending on kind. Empty when
// the event carries neither.
func (e *Event) Project() string {
	if e.Change != nil && e.Change.Project != "" {
		return e.Change.Project
	}
	if e.RefUpdate != nil {
		return e.RefUpdate.Project
	}
	return ""
}

// Branch returns the branch the event refers to: the change branch for
// change-scoped events, the updated ref name for ref-updated events.
// Empty when the event carries neither.
func (e *Event) Branch() string {
	if e.Change != nil && e.Change.Branch != "" {
		return e.Change.Branch
	}
	if e.RefUpdate != nil {
		return e.RefUpdate.RefName
	}
	return ""
}
