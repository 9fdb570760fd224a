package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core/finance"
	"github.com/trezcool/campus/core/user"
)

func (s *Server) registerFinanceAPI(authed *echo.Group) {
	admin := requireRole(user.RoleAdmin)

	tg := authed.Group("/transactions")
	tg.GET("", s.queryTransactions)
	tg.POST("", s.createTransaction, admin)

	tdg := tg.Group("/:id", admin, objectMiddleware(s.getTransaction))
	tdg.GET("", s.retrieveTransaction)
	tdg.PUT("", s.updateTransaction)
	tdg.DELETE("", s.destroyTransaction)
	tdg.POST("/pay", s.payTransaction)
	tdg.POST("/cancel", s.cancelTransaction)

	sg := authed.Group("/scholarships")
	sg.GET("", s.queryScholarships)
	sg.POST("", s.createScholarship, admin)

	sdg := sg.Group("/:id", admin, objectMiddleware(s.getScholarship))
	sdg.GET("", s.retrieveScholarship)
	sdg.PUT("", s.updateScholarship)
	sdg.DELETE("", s.destroyScholarship)
	sdg.POST("/revoke", s.revokeScholarship)

	authed.GET("/students/:student/balance", s.studentBalance)
}

func (s *Server) getTransaction(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.FinanceSvc.GetTransaction(ctx.Request().Context(), id)
}

func (s *Server) getScholarship(ctx echo.Context, id string) (interface{}, error) {
	return s.deps.FinanceSvc.GetScholarship(ctx.Request().Context(), id)
}

// ownStudentID forces the context user's ID on the filters of non-admins.
func ownStudentID(ctx echo.Context, studentID string) (string, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	if usr.IsAdmin() {
		return studentID, nil
	}
	if studentID != "" && studentID != usr.ID {
		return "", errHttpForbidden
	}
	return usr.ID, nil
}

func (s *Server) queryTransactions(ctx echo.Context) error {
	var filter finance.TransactionFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []finance.Transaction{})
	}
	var err error
	if filter.StudentID, err = ownStudentID(ctx, filter.StudentID); err != nil {
		return err
	}
	filter.Currency = strings.ToUpper(filter.Currency)

	txs, err := s.deps.FinanceSvc.QueryTransactions(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (s *Server) bindTransaction(ctx echo.Context) (finance.NewTransaction, error) {
	var data finance.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewTransaction")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createTransaction(ctx echo.Context) error {
	data, err := s.bindTransaction(ctx)
	if err != nil {
		return err
	}
	t, err := s.deps.FinanceSvc.CreateTransaction(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating transaction")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (s *Server) retrieveTransaction(ctx echo.Context) error {
	t, err := contextTransaction(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (s *Server) updateTransaction(ctx echo.Context) error {
	t, err := contextTransaction(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindTransaction(ctx)
	if err != nil {
		return err
	}
	if t, err = s.deps.FinanceSvc.UpdateTransaction(ctx.Request().Context(), t, data); err != nil {
		return errors.Wrap(err, "updating transaction")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (s *Server) payTransaction(ctx echo.Context) error {
	t, err := contextTransaction(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if t, err = s.deps.FinanceSvc.MarkPaid(ctx.Request().Context(), t); err != nil {
		return errors.Wrap(err, "marking transaction paid")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (s *Server) cancelTransaction(ctx echo.Context) error {
	t, err := contextTransaction(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if t, err = s.deps.FinanceSvc.CancelTransaction(ctx.Request().Context(), t); err != nil {
		return errors.Wrap(err, "cancelling transaction")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (s *Server) destroyTransaction(ctx echo.Context) error {
	t, err := contextTransaction(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.FinanceSvc.DeleteTransaction(ctx.Request().Context(), t.ID), "deleting transaction"))
}

func (s *Server) queryScholarships(ctx echo.Context) error {
	studentID, err := ownStudentID(ctx, ctx.QueryParam("student_id"))
	if err != nil {
		return err
	}
	schs, err := s.deps.FinanceSvc.QueryScholarships(ctx.Request().Context(), studentID)
	if err != nil {
		return errors.Wrap(err, "querying scholarships")
	}
	return ctx.JSON(http.StatusOK, schs)
}

func (s *Server) bindScholarship(ctx echo.Context) (finance.NewScholarship, error) {
	var data finance.NewScholarship
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to NewScholarship")
	}
	return data, data.Validate(s.deps.Validate)
}

func (s *Server) createScholarship(ctx echo.Context) error {
	data, err := s.bindScholarship(ctx)
	if err != nil {
		return err
	}
	sch, err := s.deps.FinanceSvc.CreateScholarship(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating scholarship")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (s *Server) retrieveScholarship(ctx echo.Context) error {
	sch, err := contextScholarship(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (s *Server) updateScholarship(ctx echo.Context) error {
	sch, err := contextScholarship(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	data, err := s.bindScholarship(ctx)
	if err != nil {
		return err
	}
	if sch, err = s.deps.FinanceSvc.UpdateScholarship(ctx.Request().Context(), sch, data); err != nil {
		return errors.Wrap(err, "updating scholarship")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (s *Server) revokeScholarship(ctx echo.Context) error {
	sch, err := contextScholarship(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	if sch, err = s.deps.FinanceSvc.RevokeScholarship(ctx.Request().Context(), sch); err != nil {
		return errors.Wrap(err, "revoking scholarship")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (s *Server) destroyScholarship(ctx echo.Context) error {
	sch, err := contextScholarship(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieving object from context")
	}
	return noContent(ctx, errors.Wrap(s.deps.FinanceSvc.DeleteScholarship(ctx.Request().Context(), sch.ID), "deleting scholarship"))
}

func (s *Server) studentBalance(ctx echo.Context) error {
	studentID, err := ownStudentID(ctx, ctx.Param("student"))
	if err != nil {
		return err
	}
	bal, err := s.deps.FinanceSvc.Balance(ctx.Request().Context(), studentID, strings.ToUpper(ctx.QueryParam("currency")))
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}

func contextTransaction(ctx echo.Context) (finance.Transaction, error) {
	transaction, ok := ctx.Get(contextObjectKey).(finance.Transaction)
	if !ok {
		return transaction, errors.Wrap(errObjNotFoundInCtx, "retrieving transaction from context")
	}
	return transaction, nil
}

func contextScholarship(ctx echo.Context) (finance.Scholarship, error) {
	scholarship, ok := ctx.Get(contextObjectKey).(finance.Scholarship)
	if !ok {
		return scholarship, errors.Wrap(errObjNotFoundInCtx, "retrieving scholarship from context")
	}
	return scholarship, nil
}
