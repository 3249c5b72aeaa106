package echoapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/trackademic/core"
	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/syllabus"
	"github.com/trezcool/trackademic/core/task"
)

const (
	uploadField = "file"

	// room for the multipart framing and the other form fields
	multipartOverhead = core.MiB
)

type syllabusApi struct {
	pipeline *syllabus.Pipeline
	classSvc *class.Service
}

func registerSyllabusAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := syllabusApi{pipeline: deps.Pipeline, classSvc: deps.ClassSvc}

	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dB", deps.Conf.Syllabus.MaxFileSize+multipartOverhead))
	sg := g.Group("/syllabus", bodyLimit, jwt)
	sg.POST("/parse", api.parse)
}

// parse runs an uploaded syllabus through the extraction pipeline.
// `?dry_run=true` only extracts: nothing is saved and no email is sent.
func (api *syllabusApi) parse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := claims.Identity()
	if err != nil {
		return err
	}
	dryRun, _ := strconv.ParseBool(ctx.QueryParam("dry_run"))

	req := syllabus.Request{
		Identity: id,
		ClassID:  task.ParseClassID(ctx.FormValue("class_id")),
		DryRun:   dryRun,
	}

	if req.ClassID.Valid {
		if _, err := api.classSvc.Get(ctx.Request().Context(), id.UserID, req.ClassID.Int64); err != nil {
			if errors.Cause(err) == class.ErrNotFound {
				return &syllabus.Error{Kind: syllabus.KindInvalidInput, Message: "Class not found", Err: err}
			}
			return err
		}
	}

	fh, err := ctx.FormFile(uploadField)
	if err != nil && err != http.ErrMissingFile {
		return &syllabus.Error{Kind: syllabus.KindInvalidInput, Message: "Invalid multipart upload", Err: err}
	}
	if fh != nil {
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer f.Close()
		req.Upload = &syllabus.Upload{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Size:      fh.Size,
			Content:   f,
		}
	}

	res, err := api.pipeline.Run(ctx.Request().Context(), req)
	if err != nil {
		return err
	}
	return ctx.JSON(res.Status(), res.Body())
}
