package server

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"dyndnsd/internal/auth"
	"dyndnsd/internal/config"
	"dyndnsd/internal/database"
	"dyndnsd/internal/handler"
	"dyndnsd/internal/mail"
	"dyndnsd/internal/nic"
	"dyndnsd/internal/pdns"
	"dyndnsd/internal/service"
	"dyndnsd/web"
)

func mustParseTemplates(fsys fs.FS, funcMap template.FuncMap, files ...string) *template.Template {
	tmpl := template.New("").Funcs(funcMap)
	tmpl, err := tmpl.ParseFS(fsys, files...)
	if err != nil {
		panic(fmt.Sprintf("failed to parse templates %v: %v", files, err))
	}
	return tmpl
}

// Start runs the portal together with the dynamic update endpoints. It
// blocks until the listener fails.
func Start(cfg *config.Config, log *zap.Logger, version string) error {
	db, err := database.Open(cfg.Database.DSN, web.MigrationsFS())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := seedSuffix(db, cfg.DNS.Suffix); err != nil {
		return fmt.Errorf("failed to seed suffix: %w", err)
	}

	sessionMgr, err := auth.NewSessionManager(db)
	if err != nil {
		return fmt.Errorf("failed to init session manager: %w", err)
	}

	if n, err := db.PurgeExpiredSessions(); err == nil && n > 0 {
		log.Info("purged expired sessions", zap.Int64("count", n))
	}

	mailer := mail.NewMailer(cfg.SMTP, log)

	var mirror nic.Mirror
	if cfg.Route53.Enabled {
		m, err := service.NewMirror(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to init Route53 mirror: %w", err)
		}
		mirror = m
		log.Info("Route53 mirroring enabled", zap.Int("zones", len(cfg.Route53.Zones)))
	}

	tmplFS := web.TemplateFS()

	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"subtract":   func(a, b int) int { return a - b },
		"version":    func() string { return version },
		"formatDate": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	}

	loginTmpl := mustParseTemplates(tmplFS, funcMap, "login.html")
	setupTmpl := mustParseTemplates(tmplFS, funcMap, "setup.html")
	signupTmpl := mustParseTemplates(tmplFS, funcMap, "signup.html")
	lostTmpl := mustParseTemplates(tmplFS, funcMap, "lostpasswd.html")
	hostsTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "hosts.html")
	hostTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "host.html")
	accountTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "account.html")
	dashTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "admin_dashboard.html")
	adminUsersTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "admin_users.html")
	adminHostsTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "admin_hosts.html")
	adminSuffixesTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "admin_suffixes.html")
	adminAuditTmpl := mustParseTemplates(tmplFS, funcMap, "layout.html", "admin_audit.html")

	var ldapClient *auth.LDAPClient
	if cfg.LDAP.Enabled {
		ldapClient = auth.NewLDAPClient(cfg.LDAP)
		log.Info("LDAP authentication enabled", zap.String("url", cfg.LDAP.URL))
	}

	setupH := handler.NewSetupHandler(db, setupTmpl)
	authH := handler.NewAuthHandler(db, sessionMgr, ldapClient, loginTmpl)
	signupH := handler.NewSignupHandler(db, mailer, signupTmpl, log)
	accountH := handler.NewAccountHandler(db, sessionMgr, mailer, accountTmpl, lostTmpl, log)
	hostH := handler.NewHostHandler(db, sessionMgr, mirror, cfg.DNS, hostsTmpl, hostTmpl, log)
	dashH := handler.NewAdminHandler(db, sessionMgr, mailer, dashTmpl, log)
	adminUsersH := handler.NewAdminHandler(db, sessionMgr, mailer, adminUsersTmpl, log)
	adminHostsH := handler.NewAdminHandler(db, sessionMgr, mailer, adminHostsTmpl, log)
	adminSuffixesH := handler.NewAdminHandler(db, sessionMgr, mailer, adminSuffixesTmpl, log)
	adminAuditH := handler.NewAdminHandler(db, sessionMgr, mailer, adminAuditTmpl, log)

	nicH := nic.NewHandler(nic.NewUpdater(db, mirror, log), log)
	remoteH := pdns.NewRemoteHandler(pdns.NewResolver(db, cfg.DNS, log), log)

	mux := http.NewServeMux()

	// Update clients authenticate with HTTP basic auth; these endpoints
	// stay outside the setup gate and the session middleware.
	mux.HandleFunc("GET /nic/update", nicH.Update)
	mux.HandleFunc("GET /nic/ip", nicH.IP)
	mux.HandleFunc("GET /dnsapi/lookup/{qname}/{qtype}", remoteH.Lookup)

	mux.HandleFunc("GET /setup", setupH.SetupPage)
	mux.HandleFunc("POST /setup", setupH.SetupSubmit)

	mux.Handle("GET /static/", web.StaticHandler())

	appMux := http.NewServeMux()

	appMux.HandleFunc("GET /login", authH.LoginPage)
	appMux.HandleFunc("POST /login", authH.LoginSubmit)
	appMux.HandleFunc("POST /logout", authH.Logout)

	appMux.HandleFunc("GET /signup", signupH.SignupPage)
	appMux.HandleFunc("POST /signup", signupH.SignupSubmit)
	appMux.HandleFunc("GET /signup/activate", signupH.Activate)

	appMux.HandleFunc("GET /lostpasswd", accountH.LostPasswordPage)
	appMux.HandleFunc("POST /lostpasswd", accountH.LostPasswordSubmit)
	appMux.HandleFunc("GET /lostpasswd/reset", accountH.ResetPage)
	appMux.HandleFunc("POST /lostpasswd/reset", accountH.ResetSubmit)

	appMux.HandleFunc("GET /hosts", sessionMgr.RequireAuth(hostH.List))
	appMux.HandleFunc("POST /hosts/create", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(hostH.Create)))
	appMux.HandleFunc("GET /hosts/{hostID}", sessionMgr.RequireAuth(hostH.Detail))
	appMux.HandleFunc("POST /hosts/{hostID}/update", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(hostH.Update)))
	appMux.HandleFunc("POST /hosts/{hostID}/password", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(hostH.UpdatePassword)))
	appMux.HandleFunc("POST /hosts/{hostID}/delete", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(hostH.Delete)))

	appMux.HandleFunc("GET /account", sessionMgr.RequireAuth(accountH.Show))
	appMux.HandleFunc("POST /account/email", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(accountH.UpdateEmail)))
	appMux.HandleFunc("POST /account/password", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(accountH.UpdatePassword)))
	appMux.HandleFunc("POST /account/delete", sessionMgr.RequireAuth(sessionMgr.ValidateCSRF(accountH.Delete)))

	appMux.HandleFunc("GET /admin", sessionMgr.RequireAdmin(dashH.Dashboard))
	appMux.HandleFunc("GET /admin/users", sessionMgr.RequireAdmin(adminUsersH.ListUsers))
	appMux.HandleFunc("POST /admin/users/create", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminUsersH.CreateUser)))
	appMux.HandleFunc("POST /admin/users/active", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminUsersH.SetUserActive)))
	appMux.HandleFunc("POST /admin/users/maxhosts", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminUsersH.SetUserMaxHosts)))
	appMux.HandleFunc("POST /admin/users/delete", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminUsersH.DeleteUser)))
	appMux.HandleFunc("GET /admin/hosts", sessionMgr.RequireAdmin(adminHostsH.ListHosts))
	appMux.HandleFunc("POST /admin/hosts/abuse", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminHostsH.SetHostAbuse)))
	appMux.HandleFunc("GET /admin/suffixes", sessionMgr.RequireAdmin(adminSuffixesH.ListSuffixes))
	appMux.HandleFunc("POST /admin/suffixes/create", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminSuffixesH.CreateSuffix)))
	appMux.HandleFunc("POST /admin/suffixes/delete", sessionMgr.RequireAdmin(sessionMgr.ValidateCSRF(adminSuffixesH.DeleteSuffix)))
	appMux.HandleFunc("GET /admin/audit", sessionMgr.RequireAdmin(adminAuditH.AuditLog))

	appMux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hosts", http.StatusSeeOther)
	})

	mux.Handle("/", handler.RequireSetupComplete(db, appMux))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("server starting", zap.String("addr", addr), zap.String("version", version))
	return http.ListenAndServe(addr, mux)
}

// seedSuffix makes sure the configured default suffix exists, so a fresh
// installation answers for it without a manual admin step.
func seedSuffix(db *database.DB, suffix string) error {
	name := strings.TrimPrefix(suffix, ".")
	if name == "" {
		return nil
	}
	existing, err := db.GetSuffixByName(name)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return db.CreateSuffix(name)
}
