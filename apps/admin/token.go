package main

import (
	"fmt"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
)

func (cli *commandLine) token(userID int, username string) error {
	token, err := echoapi.GenerateToken(cli.conf, echoapi.NewClaims(cli.conf, userID, username))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
