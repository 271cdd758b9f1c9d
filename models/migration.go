package models

import (
	"log"

	"bitbucket.org/mmdatafocus/creditrecon_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&BillingMasterEntry{},
		&ReconRun{}, &ReconRunEntry{}, &ReconIssue{},
		&PendingMatch{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
