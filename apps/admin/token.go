package main

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/masomo-console/apps/api/echo"
	"github.com/trezcool/masomo-console/core"
)

// token prints a console access token for `uname`, signed with the configured secret key.
func (cli *commandLine) token(uname string, roles []string, ttl time.Duration) error {
	op := core.Operator{ID: uname, Username: uname}
	for _, role := range roles {
		if !isRole(role) {
			return errors.Errorf("unknown role %q", role)
		}
		op.Roles = append(op.Roles, role)
	}

	token, err := echoapi.GenerateToken(cli.conf.SecretKey, echoapi.NewClaims(cli.conf, op, ttl))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func isRole(role string) bool {
	for _, r := range core.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
