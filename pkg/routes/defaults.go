package routes

// DefaultTable builds the portal's standard route table. Deployments may
// replace it with a YAML file via LoadTable; the shape and ordering
// contracts are the same either way.
//
// Literal routes are declared before parameterized siblings; the builder
// re-checks that at construction time.
func DefaultTable() (*Table, error) {
	return NewTableBuilder().
		Group(PortalPublic,
			Descriptor{Key: "public.login", Path: "/login", Component: "LoginPage"},
			Descriptor{Key: "public.logout", Path: "/logout", Component: "LogoutPage"},
			Descriptor{Key: "public.password-reset", Path: "/password-reset", Component: "PasswordResetPage"},
		).
		Group(PortalPlatform,
			Descriptor{Key: "platform.dashboard", Path: "/platform", Component: "PlatformDashboard",
				Authority: []string{"Platform-Admin"}},
			Descriptor{Key: "platform.tenants", Path: "/platform/tenants", Component: "TenantList",
				Authority: []string{"Platform-Admin"}},
			Descriptor{Key: "platform.tenants.create", Path: "/platform/tenants/create", Component: "TenantCreate",
				Authority: []string{"Platform-Admin"}},
			Descriptor{Key: "platform.tenants.detail", Path: "/platform/tenants/:id", Component: "TenantDetail",
				Authority: []string{"Platform-Admin"}},
			Descriptor{Key: "platform.system.logs", Path: "/platform/system/logs", Component: "SystemLogs",
				Authority: []string{"Platform-Admin", "system.logs"}},
			Descriptor{Key: "platform.system.settings", Path: "/platform/system/settings", Component: "SystemSettings",
				Authority: []string{"Platform-Admin", "system.settings"}},
		).
		Group(PortalTenantAdmin,
			Descriptor{Key: "tenantadmin.dashboard", Path: "/admin", Component: "AdminDashboard",
				Authority: []string{"CS-Admin"}},
			Descriptor{Key: "tenantadmin.shops", Path: "/admin/shops", Component: "ShopList",
				Authority: []string{"CS-Admin", "shops.read"}},
			Descriptor{Key: "tenantadmin.shops.create", Path: "/admin/shops/create", Component: "ShopCreate",
				Authority: []string{"CS-Admin", "shops.write"}},
			Descriptor{Key: "tenantadmin.shops.detail", Path: "/admin/shops/:id", Component: "ShopDetail",
				Authority: []string{"CS-Admin", "shops.read"}},
			Descriptor{Key: "tenantadmin.roles", Path: "/admin/roles", Component: "RoleList",
				Authority: []string{"CS-Admin", "roles.read"}},
			Descriptor{Key: "tenantadmin.roles.create", Path: "/admin/roles/create", Component: "RoleCreate",
				Authority: []string{"CS-Admin", "roles.write"}},
			Descriptor{Key: "tenantadmin.roles.detail", Path: "/admin/roles/:id", Component: "RoleDetail",
				Authority: []string{"CS-Admin", "roles.write"}},
			Descriptor{Key: "tenantadmin.users", Path: "/admin/users", Component: "UserList",
				Authority: []string{"CS-Admin", "users.read"}},
			Descriptor{Key: "tenantadmin.users.detail", Path: "/admin/users/:id", Component: "UserDetail",
				Authority: []string{"CS-Admin", "users.read"}},
		).
		Group(PortalCustomer,
			Descriptor{Key: "customer.dashboard", Path: "/customer", Component: "CustomerDashboard",
				Authority: []string{"CS-User"}},
			Descriptor{Key: "customer.reports", Path: "/customer/reports", Component: "CustomerReports",
				Authority: []string{"CS-User", "reports.read"}},
			Descriptor{Key: "customer.reports.detail", Path: "/customer/reports/:id", Component: "CustomerReportDetail",
				Authority: []string{"CS-User", "reports.read"}},
		).
		Group(PortalApp,
			Descriptor{Key: "app.home", Path: "/app", Component: "AppHome"},
			Descriptor{Key: "app.reports", Path: "/app/reports", Component: "ReportList",
				Authority: []string{"Tenant-Admin", "End-User", "reports.read"}},
			Descriptor{Key: "app.reports.detail", Path: "/app/reports/:id", Component: "ReportDetail",
				Authority: []string{"Tenant-Admin", "End-User", "reports.read"}},
			Descriptor{Key: "app.programs", Path: "/app/programs", Component: "ProgramList",
				Authority: []string{"Tenant-Admin", "programs.read"}},
			Descriptor{Key: "app.programs.detail", Path: "/app/programs/:id", Component: "ProgramDetail",
				Authority: []string{"Tenant-Admin", "programs.read"}},
			Descriptor{Key: "app.accounting.uploads", Path: "/app/accounting/uploads", Component: "AccountingUploads",
				Authority: []string{"Tenant-Admin", "accounting.write"}},
			Descriptor{Key: "app.settings", Path: "/app/settings", Component: "AppSettings",
				Authority: []string{"Tenant-Admin"}},
		).
		Group(PortalOthers,
			Descriptor{Key: "others.access-denied", Path: "/access-denied", Component: "AccessDenied"},
			Descriptor{Key: "others.profile", Path: "/profile", Component: "Profile"},
		).
		Build()
}
