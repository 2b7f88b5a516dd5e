package controller

import (
	"strconv"
	"strings"
	"time"

	"judgeresult/internal/result/model"
	"judgeresult/internal/result/spec"
	appErr "judgeresult/pkg/errors"
	pkgrepo "judgeresult/pkg/repository"

	"github.com/gin-gonic/gin"
)

// parseFilter builds the predicate of a list request. The JSON filter parameter and the
// convenience parameters are combined with AND.
func parseFilter(c *gin.Context) (spec.Spec, error) {
	parts := make([]spec.Spec, 0, 6)

	if raw := strings.TrimSpace(c.Query("filter")); raw != "" {
		s, err := spec.Parse([]byte(raw))
		if err != nil {
			return spec.Spec{}, err
		}
		parts = append(parts, s)
	}
	if raw := c.Query("user_id"); raw != "" {
		id, err := parseID(raw, "user_id")
		if err != nil {
			return spec.Spec{}, err
		}
		parts = append(parts, spec.ByUser(id))
	}
	if raw := c.Query("problem_id"); raw != "" {
		id, err := parseID(raw, "problem_id")
		if err != nil {
			return spec.Spec{}, err
		}
		parts = append(parts, spec.ByProblem(id))
	}
	if raw := c.Query("contest_id"); raw != "" {
		if strings.EqualFold(raw, "none") {
			parts = append(parts, spec.Standalone())
		} else {
			id, err := parseID(raw, "contest_id")
			if err != nil {
				return spec.Spec{}, err
			}
			parts = append(parts, spec.ByContest(id))
		}
	}
	if raw := c.Query("status"); raw != "" {
		statuses := make([]model.Status, 0)
		for _, name := range strings.Split(raw, ",") {
			st, err := model.ParseStatus(strings.TrimSpace(name))
			if err != nil {
				return spec.Spec{}, appErr.Newf(appErr.InvalidPredicate, "unknown status %q", name)
			}
			statuses = append(statuses, st)
		}
		parts = append(parts, spec.WithStatus(statuses...))
	}
	if raw := c.Query("language"); raw != "" {
		parts = append(parts, spec.Eq(spec.FieldLanguage, raw))
	}
	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		var fromT, toT time.Time
		var err error
		if from != "" {
			if fromT, err = time.Parse(time.RFC3339, from); err != nil {
				return spec.Spec{}, appErr.Newf(appErr.InvalidPredicate, "from must be RFC3339")
			}
		}
		if to != "" {
			if toT, err = time.Parse(time.RFC3339, to); err != nil {
				return spec.Spec{}, appErr.Newf(appErr.InvalidPredicate, "to must be RFC3339")
			}
		}
		parts = append(parts, spec.SubmittedBetween(fromT, toT))
	}

	var s spec.Spec
	switch len(parts) {
	case 0:
		s = spec.All()
	case 1:
		s = parts[0]
	default:
		s = spec.And(parts...)
	}
	if err := s.Validate(); err != nil {
		return spec.Spec{}, err
	}
	return s, nil
}

func parsePage(c *gin.Context) (pkgrepo.PageRequest, error) {
	var page pkgrepo.PageRequest
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, appErr.BadRequest("page must be an integer")
		}
		page.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return page, appErr.BadRequest("page_size must be an integer")
		}
		page.PageSize = n
	}
	if err := page.Validate(); err != nil {
		return page, appErr.Wrapf(err, appErr.InvalidParams, "%v", err)
	}
	return page, nil
}

func parseID(raw, name string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErr.Newf(appErr.InvalidParams, "invalid %s", name)
	}
	return id, nil
}
