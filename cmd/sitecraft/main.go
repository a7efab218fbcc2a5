package main

import (
	"k8s.io/klog/v2"

	"github.com/sitecraft/sitecraft/cmd/sitecraft/helper"
)

// @title						SiteCraft API
// @version						1.0.0
// @description					This is the API server for SiteCraft, a marketplace connecting clients with web developers.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description					填入 'Bearer ${TOKEN}' 以访问受保护的接口，TOKEN 由认证服务签发
func main() {
	klog.InitFlags(nil)

	// Load debug environment before the config reads secrets from it
	if err := helper.LoadDebugEnvironment(); err != nil {
		klog.Fatalf("Failed to load env: %s", err)
	}

	configInit := helper.NewConfigInitializer()
	backendConfig := configInit.GetBackendConfig()

	registerConfig, err := configInit.InitializeRegisterConfig()
	if err != nil {
		klog.Fatalf("Failed to register config: %s\n", err)
	}

	serverRunner := helper.NewServerRunner(backendConfig)
	serverRunner.StartCronJobs(registerConfig)
	serverRunner.StartServer(registerConfig)
}
