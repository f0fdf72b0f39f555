package models

import "time"

// Classroom groups enrolled members under an organization. Directory
// management lives outside this service; these rows are read-only here.
type Classroom struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	Name      string    `db:"name" json:"name"`
	AdminID   string    `db:"admin_id" json:"admin_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Enrollment links a member to a classroom.
type Enrollment struct {
	ClassroomID string    `db:"classroom_id" json:"classroom_id"`
	MemberID    string    `db:"member_id" json:"member_id"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}
