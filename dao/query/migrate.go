package query

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/sitecraft/sitecraft/dao/model"
)

// Migrate applies every schema migration in order. Migration ids are
// append-only; never edit one that has shipped.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202601010000_init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&model.User{},
					&model.Project{},
					&model.Payment{},
					&model.Message{},
					&model.Notification{},
					&model.ProjectFile{},
					&model.ProjectDeliverable{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"project_deliverables", "project_files", "notifications",
					"messages", "payments", "projects", "users",
				)
			},
		},
		{
			ID: "202602150000_meeting_sessions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&model.MeetingSession{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("meeting_sessions")
			},
		},
	})
	return m.Migrate()
}
