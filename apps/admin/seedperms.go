package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/rbac"
	appfs "github.com/trezcool/ratiba/fs"
)

func (cli *commandLine) seedPermissions(path string) error {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = appfs.FS.ReadFile(appfs.DefaultSeedPath)
	} else {
		data, err = readFileFunc(path)
	}
	if err != nil {
		return errors.Wrap(err, "reading seed file")
	}

	seed, err := rbac.ParseSeed(data)
	if err != nil {
		return err
	}
	if err = cli.rbacSvc.Seed(context.Background(), seed); err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "seeded %d permissions & %d groups\n", len(seed.Permissions), len(seed.Groups))
	return nil
}
