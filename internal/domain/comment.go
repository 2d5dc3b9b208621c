package domain

import "time"

// MaxCommentLength bounds product comments and review comments, in characters.
const MaxCommentLength = 2000

// Comment is a user comment on a product. It is hidden from other users until
// approved; rejection deletes it.
type Comment struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Comment   string    `json:"comment"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}

// VisibleTo reports whether viewerID may see the comment. An empty viewerID is
// an anonymous visitor.
func (c *Comment) VisibleTo(viewerID string) bool {
	return c.Approved || (viewerID != "" && c.UserID == viewerID)
}
