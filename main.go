package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"pagesmith/admin"
	"pagesmith/analytics"
	"pagesmith/backoffice"
	"pagesmith/common"
	"pagesmith/database"
	"pagesmith/email"
	"pagesmith/models"
	"pagesmith/pages"
	"pagesmith/site"
)

type options struct {
	port        string
	pageTypes   string
	createUser  string
	password    string
	roles       string
	migrateOnly bool
}

func parseFlags() (*options, error) {
	opts := &options{}

	flagSet := pflag.NewFlagSet("pagesmith", pflag.ContinueOnError)
	flagSet.StringVar(&opts.port, "port", "", "port to listen on (overrides PORT)")
	flagSet.StringVar(&opts.pageTypes, "page-types", "", "YAML file with page types to seed (overrides PAGE_TYPES_FILE)")
	flagSet.StringVar(&opts.createUser, "create-user", "", "create a user with this email and exit")
	flagSet.StringVar(&opts.password, "password", "", "password of the user created with --create-user")
	flagSet.StringVar(&opts.roles, "roles", models.RoleAdmin, "comma separated roles of the user created with --create-user")
	flagSet.BoolVar(&opts.migrateOnly, "migrate-only", false, "run migrations and seeds, then exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return nil, err
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatal("Invalid flags: ", err)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}
	if opts.port != "" {
		cfg.Port = opts.port
	}
	if opts.pageTypes != "" {
		cfg.PageTypesFile = opts.pageTypes
	}

	db := common.ConnectDb(cfg)
	if db == nil {
		log.Fatal("Failed to connect to database")
	}

	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	if cfg.PageTypesFile != "" {
		if err := database.SeedPageTypesFile(db, cfg.PageTypesFile); err != nil {
			log.Fatal("Failed to seed page types:", err)
		}
	}

	if opts.createUser != "" {
		user, err := admin.CreateUser(db, opts.createUser, opts.password, opts.roles)
		if err != nil {
			log.Fatal("Failed to create user:", err)
		}
		log.Printf("created user %d (%s)", user.ID, user.Email)
		return
	}

	if opts.migrateOnly {
		log.Println("migrations finished")
		return
	}

	router := gin.Default()

	if cfg.CORSOrigin != "" {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "X-Requested-With"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   false,
	})
	router.Use(sessions.Sessions("pagesmith-session", store))

	router.LoadHTMLGlob("*/views/*.html")
	router.Static("/"+cfg.UploadDir, "./"+cfg.UploadDir)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	manager := pages.NewManager(pages.NewGormStore(db))

	analyticsModule := analytics.NewAnalyticsModule(common.ConnectAnalyticsDb(cfg))
	if err := analyticsModule.StartRetention(cfg.AnalyticsRetentionSchedule, cfg.AnalyticsRetention); err != nil {
		log.Printf("error scheduling analytics retention: %v", err)
	}
	defer analyticsModule.StopRetention()

	mailer := email.NewHelpdeskMailer(cfg)

	adminModule := admin.NewAdminModule(db, manager, admin.NewFormRegistry(), analyticsModule, cfg.UploadDir)
	adminModule.RegisterRoutes(router)

	backofficeModule := backoffice.NewBackofficeModule(db, manager, cfg)
	backofficeModule.RegisterRoutes(router)

	siteModule := site.NewSiteModule(db, manager, analyticsModule, mailer, cfg.UploadDir)
	siteModule.RegisterRoutes(router)

	log.Printf("Starting server on port %s...", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
