package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

// addUser updates or creates an account, approved right away.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			Role:      user.RoleTeacher,
			CreatedAt: time.Now().UTC(),
		}
	}
	usr.FullName = name
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.Approved = true
	if !usr.ApprovedAt.Valid {
		usr.ApprovedAt.SetValid(time.Now().UTC())
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if _, err = cli.usrRepo.GetUserByID(ctx, usr.ID); err == user.ErrNotFound {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
