package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert. IDs are generated
// application-side so the schema stays portable between postgres and sqlite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All returns every model managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&JobPosting{},
		&Resume{},
		&Flag{},
		&UserBlock{},
		&PendingAction{},
		&MisconductReport{},
		&PolicyAcknowledgment{},
		&Notification{},
		&AuditLog{},
		&SystemLog{},
	}
}
