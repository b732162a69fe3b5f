package api

import (
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

//go:embed ui/dist/*
var embeddedUI embed.FS

func getUIFs() static.ServeFileSystem {
	fs, err := static.EmbedFolder(embeddedUI, "ui/dist")
	if err != nil {
		panic("api: failed to load embedded UI assets: " + err.Error())
	}
	return fs
}

// mountUI serves the diagnostics placeholder page at "/", leaving
// "/api" and "/swagger" untouched.
func mountUI(r *gin.Engine, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	distFS := getUIFs()
	r.Use(static.Serve("/", distFS))

	r.NoRoute(func(c *gin.Context) {
		uri := c.Request.RequestURI
		if strings.HasPrefix(uri, "/api") || strings.HasPrefix(uri, "/swagger") {
			return
		}
		index, err := distFS.Open("index.html")
		if err != nil {
			logger.Error("api: failed to open index.html", "err", err)
			c.Status(http.StatusNotFound)
			return
		}
		defer index.Close()
		stat, _ := index.Stat()
		http.ServeContent(c.Writer, c.Request, "index.html", stat.ModTime(), index)
	})
}
