package repository

import (
	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
	"github.com/omni/messenger-watcher/repository/postgres"
)

type Repo struct {
	Messages entity.MessagesRepo
	Relays   entity.RelaysRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Messages: postgres.NewMessagesRepo("messages", db),
		Relays:   postgres.NewRelaysRepo("relays", db),
	}
}
