package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/session"
)

// addAdmin grants the admin role to uid, if not already granted.
func (cli *commandLine) addAdmin(ctx context.Context, uid string) error {
	uid = core.CleanString(uid)

	docs, err := cli.store.Find(ctx, session.CollAdmins, map[string]interface{}{"uid": uid})
	if err != nil {
		return errors.Wrap(err, "looking up admins")
	}
	if len(docs) > 0 {
		fmt.Fprintf(cli.out, "%s is already an admin\n", uid)
		return nil
	}

	if _, err = cli.store.Add(ctx, session.CollAdmins, map[string]interface{}{"uid": uid}); err != nil {
		return errors.Wrap(err, "adding admin")
	}
	// cached roles are resolved again on next sign in
	if err = cli.cache.ClearAll(); err != nil {
		return errors.Wrap(err, "clearing cache")
	}
	fmt.Fprintf(cli.out, "%s is now an admin\n", uid)
	return nil
}
