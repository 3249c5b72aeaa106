package main

import (
	"context"
	"fmt"

	"github.com/trezcool/trackademic/core/user"
)

// addUser creates a user, or resets the password of an existing one.
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch err {
	case nil:
		uu := user.UpdateUser{Name: name, Password: pwd, PasswordConfirm: pwd}
		if err := uu.Validate(usr, cli.validate); err != nil {
			return cli.describe(err)
		}
		if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "updated user #%d <%s>\n", usr.ID, usr.Email)
		return nil

	case user.ErrNotFound:
		nu := user.NewUser{Name: name, Email: email, Password: pwd, PasswordConfirm: pwd, IsAdmin: isAdmin}
		if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return cli.describe(err)
		}
		if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created user #%d <%s>\n", usr.ID, usr.Email)
		return nil
	}
	return err
}
