// Command rgpu-verify inspects a host's RGPU installation: config file,
// client daemon reachability, GPU pool contents, backend connectivity,
// and whether the CUDA interpose library and Vulkan ICD manifest are
// actually in place. It never mutates anything it checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Fill84/RGPU-sub000/internal/config"
	"github.com/Fill84/RGPU-sub000/internal/transport"
	"github.com/Fill84/RGPU-sub000/internal/wire"
)

func connectUnix(socketPath string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(time.Now().Add(timeout))
	return conn, nil
}

type status string

const (
	statusPass status = "pass"
	statusFail status = "fail"
	statusWarn status = "warn"
	statusSkip status = "skip"
)

type checkResult struct {
	Name    string   `json:"name"`
	Status  status   `json:"status"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func pass(name, msg string) checkResult { return checkResult{Name: name, Status: statusPass, Message: msg} }
func fail(name, msg string) checkResult { return checkResult{Name: name, Status: statusFail, Message: msg} }
func warn(name, msg string) checkResult { return checkResult{Name: name, Status: statusWarn, Message: msg} }
func skip(name, msg string) checkResult { return checkResult{Name: name, Status: statusSkip, Message: msg} }

func (c checkResult) detail(d string) checkResult {
	c.Details = append(c.Details, d)
	return c
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rgpu-verify",
		Short: "Verify an RGPU installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(configPath, asJSON)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "rgpu.yaml", "path to the client config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit results as a JSON array instead of a report")
	return cmd
}

func runVerify(configPath string, asJSON bool) error {
	var results []checkResult

	cfg := checkConfig(configPath, &results)
	gpus := checkDaemon(&results)
	checkGpuPool(gpus, &results)

	if cfg != nil {
		for _, b := range cfg.Backends {
			checkBackend(b, &results)
		}
	} else {
		results = append(results, skip("Server connectivity", "no config loaded, cannot check backends"))
	}

	checkCudaInterpose(&results)
	checkVulkanICD(&results)

	if asJSON {
		printJSON(results)
	} else {
		printPretty(results)
	}

	for _, r := range results {
		if r.Status == statusFail {
			os.Exit(1)
		}
	}
	return nil
}

func checkConfig(path string, results *[]checkResult) *config.ClientConfig {
	if _, err := os.Stat(path); err != nil {
		*results = append(*results, warn("Configuration", fmt.Sprintf("config file not found: %s", path)).
			detail("using default configuration").
			detail("create rgpu.yaml or set --config"))
		return nil
	}

	cfg, err := config.LoadClient(path)
	if err != nil {
		*results = append(*results, fail("Configuration", fmt.Sprintf("failed to parse %s: %v", path, err)))
		return nil
	}

	r := pass("Configuration", fmt.Sprintf("loaded from %s", path))
	if len(cfg.Backends) == 0 {
		r = r.detail("no remote backends configured")
	}
	for i, b := range cfg.Backends {
		r = r.detail(fmt.Sprintf("backend %d: %s (%s, %s)", i+1, b.Name, b.Address, b.Transport))
	}
	r = r.detail(fmt.Sprintf("pool ordering: %s", cfg.PoolOrdering))
	*results = append(*results, r)
	return cfg
}

func checkDaemon(results *[]checkResult) []wire.GpuInfo {
	socketPath := config.DefaultIPCSocketPath()
	gpus, err := queryDaemonGpus(socketPath)
	if err != nil {
		*results = append(*results, fail("Client daemon", fmt.Sprintf("cannot connect: %v", err)).
			detail(fmt.Sprintf("ipc path: %s", socketPath)).
			detail("is the client daemon running? start with: rgpu-clientd"))
		return nil
	}
	*results = append(*results, pass("Client daemon", fmt.Sprintf("connected via %s", socketPath)).
		detail(fmt.Sprintf("gpu pool: %d gpu(s) available", len(gpus))))
	return gpus
}

func queryDaemonGpus(socketPath string) ([]wire.GpuInfo, error) {
	conn, err := connectUnix(socketPath, 5*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	frame, err := wire.EncodeFrame(wire.MsgQueryGpus, wire.QueryGpus{}, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := wire.WriteFrame(conn, frame); err != nil {
		return nil, err
	}
	reply, err := wire.ReadFrame(wire.NewFrameReader(conn))
	if err != nil {
		return nil, err
	}
	msgType, payload, err := wire.Decode(reply.Payload)
	if err != nil {
		return nil, err
	}
	if msgType != wire.MsgGpuList {
		return nil, fmt.Errorf("unexpected response type %v", msgType)
	}
	var list wire.GpuList
	if err := wire.DecodeBody(payload, &list); err != nil {
		return nil, err
	}
	return list.Gpus, nil
}

func checkGpuPool(gpus []wire.GpuInfo, results *[]checkResult) {
	if gpus == nil {
		*results = append(*results, skip("GPU pool", "daemon not connected, cannot query gpu pool"))
		return
	}
	if len(gpus) == 0 {
		*results = append(*results, warn("GPU pool", "no gpus in pool").
			detail("check backend connectivity or add a local simulated gpu"))
		return
	}
	r := pass("GPU pool", fmt.Sprintf("%d gpu(s) available", len(gpus)))
	for i, g := range gpus {
		r = r.detail(fmt.Sprintf("gpu %d: %s (vram: %d MB, cuda: %v, vulkan: %v)",
			i, g.DeviceName, g.VRAMBytes/(1024*1024), g.IsCudaCapable, g.IsVulkanCapable))
	}
	*results = append(*results, r)
}

func checkBackend(b config.BackendConfig, results *[]checkResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gpuCount, serverID, err := dialAndHandshake(ctx, b)
	if err != nil {
		*results = append(*results, fail(fmt.Sprintf("Backend %s", b.Address), fmt.Sprintf("failed: %v", err)).
			detail("check backend address, transport, and token"))
		return
	}
	*results = append(*results, pass(fmt.Sprintf("Backend %s", b.Address),
		fmt.Sprintf("connected, %d gpu(s), server_id=%d", gpuCount, serverID)))
}

func dialAndHandshake(ctx context.Context, b config.BackendConfig) (int, uint16, error) {
	kind, err := transport.ParseKind(b.Transport)
	if err != nil {
		return 0, 0, err
	}
	conn, err := transport.DialKind(ctx, kind, b.Address)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	helloFrame, err := wire.EncodeFrame(wire.MsgHello, wire.Hello{ProtocolVersion: wire.ProtocolVersion, PeerName: "rgpu-verify"}, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	if err := conn.WriteFrame(ctx, helloFrame); err != nil {
		return 0, 0, err
	}

	reply, err := conn.ReadFrame(ctx)
	if err != nil {
		return 0, 0, err
	}
	msgType, payload, err := wire.Decode(reply.Payload)
	if err != nil {
		return 0, 0, err
	}
	if msgType != wire.MsgHello {
		return 0, 0, fmt.Errorf("unexpected response to hello: %v", msgType)
	}
	var serverHello wire.Hello
	if err := wire.DecodeBody(payload, &serverHello); err != nil {
		return 0, 0, err
	}
	if serverHello.ProtocolVersion != wire.ProtocolVersion {
		return 0, 0, fmt.Errorf("protocol version mismatch: server=%d client=%d", serverHello.ProtocolVersion, wire.ProtocolVersion)
	}

	response, err := transport.ComputeResponse(b.Token, serverHello.Challenge)
	if err != nil {
		return 0, 0, err
	}
	authFrame, err := wire.EncodeFrame(wire.MsgAuthenticate, wire.Authenticate{Token: b.Token, ChallengeResponse: response}, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	if err := conn.WriteFrame(ctx, authFrame); err != nil {
		return 0, 0, err
	}

	authReply, err := conn.ReadFrame(ctx)
	if err != nil {
		return 0, 0, err
	}
	msgType, payload, err = wire.Decode(authReply.Payload)
	if err != nil {
		return 0, 0, err
	}
	if msgType != wire.MsgAuthResult {
		return 0, 0, fmt.Errorf("unexpected response to authenticate: %v", msgType)
	}
	var result wire.AuthResult
	if err := wire.DecodeBody(payload, &result); err != nil {
		return 0, 0, err
	}
	if !result.Success {
		return 0, 0, fmt.Errorf("authentication failed: %s", result.Error)
	}
	return len(result.Gpus), result.ServerID, nil
}

func checkCudaInterpose(results *[]checkResult) {
	paths := []string{
		"/usr/lib/rgpu/librgpu_cuda_interpose.so",
		"/usr/local/lib/rgpu/librgpu_cuda_interpose.so",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			*results = append(*results, pass("CUDA interpose", fmt.Sprintf("found at %s", p)).
				detail(fmt.Sprintf("use: LD_PRELOAD=%s <application>", p)))
			return
		}
	}
	*results = append(*results, warn("CUDA interpose", "cuda interpose library not found").
		detail("expected at: /usr/lib/rgpu/librgpu_cuda_interpose.so"))
}

func checkVulkanICD(results *[]checkResult) {
	paths := []string{
		"/usr/share/vulkan/icd.d/rgpu_icd.json",
		"/etc/vulkan/icd.d/rgpu_icd.json",
		"/usr/local/share/vulkan/icd.d/rgpu_icd.json",
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), "rgpu_vk_icd") || strings.Contains(string(data), "librgpu_vk_icd") {
			*results = append(*results, pass("Vulkan ICD", fmt.Sprintf("icd manifest found at %s", p)).
				detail("the vulkan loader will automatically pick up the rgpu icd"))
			return
		}
		*results = append(*results, warn("Vulkan ICD", fmt.Sprintf("manifest at %s does not reference the rgpu library", p)))
		return
	}

	if icdEnv := os.Getenv("VK_ICD_FILENAMES"); strings.Contains(icdEnv, "rgpu") {
		*results = append(*results, pass("Vulkan ICD", fmt.Sprintf("VK_ICD_FILENAMES set to: %s", icdEnv)).
			detail("the vulkan loader will use this override"))
		return
	}

	*results = append(*results, warn("Vulkan ICD", "rgpu vulkan icd manifest not found").
		detail("expected at: /usr/share/vulkan/icd.d/rgpu_icd.json"))
}

func printPretty(results []checkResult) {
	fmt.Println()
	fmt.Println("RGPU Installation Verification")
	fmt.Println("===============================")
	fmt.Println()

	var passCount, failCount, warnCount int
	for _, r := range results {
		icon := "[SKIP]"
		switch r.Status {
		case statusPass:
			passCount++
			icon = "[PASS]"
		case statusFail:
			failCount++
			icon = "[FAIL]"
		case statusWarn:
			warnCount++
			icon = "[WARN]"
		}
		fmt.Printf("  %s %s - %s\n", icon, r.Name, r.Message)
		for _, d := range r.Details {
			fmt.Printf("         %s\n", d)
		}
		fmt.Println()
	}

	fmt.Println("-------------------------------")
	fmt.Printf("  %d passed, %d failed, %d warnings\n", passCount, failCount, warnCount)
	fmt.Println()
}

func printJSON(results []checkResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.Encode(results)
}
