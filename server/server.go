// Package server exposes the pipeline over HTTP: one download route turning
// an identifier plus options into a finished book.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"wattpad-downloader/book"
	"wattpad-downloader/cache"
	"wattpad-downloader/downloader"
	"wattpad-downloader/model"
	"wattpad-downloader/resolver"
)

type Server struct {
	downloader *downloader.Downloader
	assembler  *book.Assembler
	cache      *cache.Cache
	log        zerolog.Logger
}

func New(d *downloader.Downloader, a *book.Assembler, c *cache.Cache, log zerolog.Logger) *Server {
	return &Server{
		downloader: d,
		assembler:  a,
		cache:      c,
		log:        log.With().Str("component", "server").Logger(),
	}
}

func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/download/:id", s.handleDownload)
	return r
}

func (s *Server) Run(addr string) error {
	s.log.Info().Str("addr", addr).Msg("listening")
	return s.Router().Run(addr)
}

func (s *Server) handleDownload(c *gin.Context) {
	req, err := parseRequest(c)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, errHalfCredentials) || errors.Is(err, errBadOption) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}

	res, err := s.cache.GetOrBuild(c.Request.Context(), req.Fingerprint(), func(ctx context.Context) (*model.BuildResult, error) {
		bundle, err := s.downloader.Gather(ctx, req.Target, req.Credentials, req.DownloadImages)
		if err != nil {
			return nil, err
		}
		return s.assembler.Assemble(ctx, bundle, req)
	})
	if err != nil {
		s.log.Warn().Str("target", req.Target.String()).Err(err).Msg("build failed")
		c.JSON(statusFor(err), gin.H{"detail": err.Error()})
		return
	}

	if res.Report.Degraded() {
		c.Header("X-Missing-Chapters", strconv.Itoa(len(res.Report.FailedChapters)))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	c.Data(http.StatusOK, res.ContentType, res.Data)
}

var (
	errHalfCredentials = errors.New("username and password must be provided together")
	errBadOption       = errors.New("invalid option")
)

// parseRequest turns the route and query parameters into a build request.
// The mode parameter overrides the resolved kind for bare numeric IDs whose
// shape alone cannot distinguish a story from a part or a list.
func parseRequest(c *gin.Context) (model.BuildRequest, error) {
	var req model.BuildRequest

	target, err := resolver.Resolve(c.Param("id"))
	if err != nil {
		return req, err
	}
	if mode := c.Query("mode"); mode != "" {
		switch model.TargetKind(mode) {
		case model.TargetStory, model.TargetPart, model.TargetList:
			target.Kind = model.TargetKind(mode)
		default:
			return req, fmt.Errorf("%w: mode %q", errBadOption, mode)
		}
	}
	req.Target = target

	req.Format = model.FormatEPUB
	if format := c.Query("format"); format != "" {
		switch model.Format(format) {
		case model.FormatEPUB, model.FormatPDF:
			req.Format = model.Format(format)
		default:
			return req, fmt.Errorf("%w: format %q", errBadOption, format)
		}
	}

	if v := c.Query("download_images"); v != "" {
		images, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("%w: download_images %q", errBadOption, v)
		}
		req.DownloadImages = images
	}

	username, password := c.Query("username"), c.Query("password")
	if (username == "") != (password == "") {
		return req, errHalfCredentials
	}
	if username != "" {
		req.Credentials = &model.Credentials{Username: username, Password: password}
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrAuthenticationFailed):
		return http.StatusForbidden
	case errors.Is(err, model.ErrInvalidIdentifier), errors.Is(err, model.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
