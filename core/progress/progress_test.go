package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/class"
)

func TestComputeProgress(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{3, 0, 0},
		{0, 4, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{4, 4, 100},
		{5, 4, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ComputeProgress(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func Test_newCertificateCode(t *testing.T) {
	code := newCertificateCode()
	assert.Len(t, code, 16)
	assert.Regexp(t, `^[0-9A-F]{16}$`, code)
	assert.NotEqual(t, code, newCertificateCode())
}

// racyRepo lets another completion issue the certificate between the lookup and the insert.
type racyRepo struct {
	Repository
	existing Certificate
	lookups  int
}

func (r *racyRepo) GetCertificate(context.Context, string, string) (Certificate, error) {
	r.lookups++
	if r.lookups == 1 {
		return Certificate{}, ErrCertificateNotFound
	}
	return r.existing, nil
}

func (r *racyRepo) CreateCertificate(context.Context, Certificate) (Certificate, error) {
	return Certificate{}, ErrCertificateExists
}

func Test_tracker_issueCertificate(t *testing.T) {
	ctx := context.Background()
	enr := class.Enrollment{ID: "e1", UserID: "u1", ClassID: "c1"}

	t.Run("lost race", func(t *testing.T) {
		repo := &racyRepo{existing: Certificate{ID: "cert", UserID: "u1", CourseID: "crs", Code: "ABC"}}
		tr := &tracker{repo: repo, nowFunc: time.Now}

		cert, issued, err := tr.issueCertificate(ctx, enr, "crs")
		require.NoError(t, err)
		assert.False(t, issued)
		assert.Equal(t, repo.existing, cert)
		assert.Equal(t, 2, repo.lookups)
	})

	t.Run("already issued", func(t *testing.T) {
		repo := &racyRepo{existing: Certificate{ID: "cert"}, lookups: 1}
		tr := &tracker{repo: repo, nowFunc: time.Now}

		cert, issued, err := tr.issueCertificate(ctx, enr, "crs")
		require.NoError(t, err)
		assert.False(t, issued)
		assert.Equal(t, "cert", cert.ID)
	})
}
