package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
)

// parseSyllabus runs a local file through the extraction pipeline and prints the JSON result.
// Nothing is persisted unless save is set.
func (cli *commandLine) parseSyllabus(path, email, classID string, save bool) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return errors.Wrapf(err, "finding user %q", email)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	req := syllabus.Request{
		Identity: syllabus.Identity{UserID: usr.ID, Email: usr.Email, Name: usr.Name},
		Upload: &syllabus.Upload{
			Name:    filepath.Base(path),
			Size:    info.Size(),
			Content: f,
		},
		ClassID: task.ParseClassID(classID),
		DryRun:  !save,
	}
	res, err := cli.pipeline.Run(ctx, req)
	if err != nil {
		var serr *syllabus.Error
		if errors.As(err, &serr) {
			_ = cli.printJSON(serr.Body())
		}
		return err
	}
	cli.waitForMail()
	return cli.printJSON(res.Body())
}

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
