package main

import (
	"context"

	"github.com/arkibo/backend/core"
)

// approveTeacher adds the email to the approved teachers list; teachers on it
// register with instant approval.
func (cli *commandLine) approveTeacher(email string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	emails, err := cli.cfgRepo.GetApprovedTeachers(ctx)
	if err != nil {
		return err
	}
	if core.ContainsString(emails, email) {
		return nil
	}
	return cli.cfgRepo.SetApprovedTeachers(ctx, append(emails, email))
}
