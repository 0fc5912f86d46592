package config

import (
	"os"
	"path/filepath"
	"strconv"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Config holds the application configuration
type Config struct {
	KubeConfig    *rest.Config
	ClientSet     *kubernetes.Clientset
	DynamicClient dynamic.Interface

	LogLevel      string
	MaxIterations int
	MetricsAddr   string

	Oracle OracleConfig
}

// OracleConfig holds settings for the advisory oracle endpoint
type OracleConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// LoadConfig initializes the Kubernetes configuration and agent settings
func LoadConfig(kubeconfigPath string) (*Config, error) {
	restConfig, err := buildRESTConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, err
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, err
	}

	cfg := LoadAgentConfig()
	cfg.KubeConfig = restConfig
	cfg.ClientSet = clientset
	cfg.DynamicClient = dynamicClient
	return cfg, nil
}

// LoadAgentConfig loads the non-cluster settings from the environment.
// Useful for commands that never touch a cluster.
func LoadAgentConfig() *Config {
	return &Config{
		LogLevel:      getEnv("SCC_AGENT_LOG_LEVEL", "INFO"),
		MaxIterations: getEnvInt("SCC_AGENT_MAX_ITERATIONS", 3),
		MetricsAddr:   getEnv("SCC_AGENT_METRICS_ADDR", ":8080"),
		Oracle: OracleConfig{
			Endpoint: getEnv("ORACLE_ENDPOINT", "https://api.openai.com/v1/chat/completions"),
			APIKey:   os.Getenv("ORACLE_API_KEY"),
			Model:    getEnv("ORACLE_MODEL", "gpt-4"),
		},
	}
}

func buildRESTConfig(kubeconfigPath string) (*rest.Config, error) {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		// Running inside a pod
		return rest.InClusterConfig()
	}

	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		kubeconfigPath = filepath.Join(home, ".kube", "config")
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}
