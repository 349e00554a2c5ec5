package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
)

// lifecycleWorld is the per-scenario state for the lifecycle feature.
type lifecycleWorld struct {
	h      *harness
	state  string
	err    error
	status domain.StatusMap
}

func (w *lifecycleWorld) userHasNoConnections(userID string) error {
	h, err := buildHarness()
	if err != nil {
		return err
	}
	w.h = h
	return nil
}

func (w *lifecycleWorld) beginsAuthorization(userID, platform string) error {
	resp, err := w.h.svc.BeginAuthorization(context.Background(), driving.BeginAuthorizationRequest{
		UserID:   userID,
		Platform: domain.Platform(platform),
	})
	if err != nil {
		return err
	}
	w.state = resp.State
	return nil
}

func (w *lifecycleWorld) minutesPass(n int) error {
	w.h.clock.Advance(time.Duration(n) * time.Minute)
	return nil
}

func (w *lifecycleWorld) providerRedirectsBack(code string) error {
	_, w.err = w.h.svc.CompleteAuthorization(context.Background(), driving.CompleteAuthorizationRequest{
		Code:  code,
		State: w.state,
	})
	return nil
}

func (w *lifecycleWorld) callbackSucceeds() error {
	return w.err
}

func (w *lifecycleWorld) callbackFailsWith(msg string) error {
	if w.err == nil {
		return fmt.Errorf("expected callback to fail with %q", msg)
	}
	if w.err.Error() != msg {
		return fmt.Errorf("expected error %q, got %q", msg, w.err.Error())
	}
	return nil
}

func (w *lifecycleWorld) connectedWithExpiredToken(userID, platform string) error {
	_, err := w.h.connection(userID, domain.Platform(platform), "old-access", "old-refresh", -time.Minute)
	return err
}

func (w *lifecycleWorld) providerRejectsRefresh() error {
	w.h.client.RefreshFn = func(p *domain.ProviderConfig, _ string) (*domain.TokenResponse, error) {
		return nil, &domain.TokenExchangeError{Platform: p.Platform, StatusCode: 400, Code: "invalid_grant"}
	}
	return nil
}

func (w *lifecycleWorld) readsStatus(userID string) error {
	status, err := w.h.svc.GetConnectionStatus(context.Background(), userID)
	if err != nil {
		return err
	}
	w.status = status
	return nil
}

func (w *lifecycleWorld) seesPlatformAs(userID, platform, status, activity string) error {
	if err := w.readsStatus(userID); err != nil {
		return err
	}
	entry, ok := w.status[domain.Platform(platform)]
	if !ok {
		return fmt.Errorf("no status entry for %s", platform)
	}
	if string(entry.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, entry.Status)
	}
	if want := activity == "active"; entry.IsActive != want {
		return fmt.Errorf("expected is_active=%v, got %v", want, entry.IsActive)
	}
	return nil
}

func (w *lifecycleWorld) refreshCount(n int) error {
	if got := w.h.client.Refreshes(); got != n {
		return fmt.Errorf("expected %d refreshes, got %d", n, got)
	}
	return nil
}

func (w *lifecycleWorld) disconnects(userID, platform string) error {
	return w.h.svc.Disconnect(context.Background(), userID, domain.Platform(platform))
}

func (w *lifecycleWorld) hasNoEntry(userID, platform string) error {
	if err := w.readsStatus(userID); err != nil {
		return err
	}
	if _, ok := w.status[domain.Platform(platform)]; ok {
		return fmt.Errorf("unexpected %s entry after disconnect", platform)
	}
	return nil
}

func initializeLifecycleScenario(sc *godog.ScenarioContext) {
	w := &lifecycleWorld{}

	sc.Step(`^user "([^"]*)" has no connections$`, w.userHasNoConnections)
	sc.Step(`^"([^"]*)" begins authorization for "([^"]*)"$`, w.beginsAuthorization)
	sc.Step(`^(\d+) minutes pass$`, w.minutesPass)
	sc.Step(`^the provider redirects back with code "([^"]*)"$`, w.providerRedirectsBack)
	sc.Step(`^the callback succeeds$`, w.callbackSucceeds)
	sc.Step(`^the callback fails with "([^"]*)"$`, w.callbackFailsWith)
	sc.Step(`^"([^"]*)" is connected to "([^"]*)" with a token that expired$`, w.connectedWithExpiredToken)
	sc.Step(`^the provider rejects refresh requests$`, w.providerRejectsRefresh)
	sc.Step(`^"([^"]*)" reads their connection status$`, w.readsStatus)
	sc.Step(`^"([^"]*)" sees "([^"]*)" as "([^"]*)" and (active|inactive)$`, w.seesPlatformAs)
	sc.Step(`^the provider was asked to refresh (\d+) times?$`, w.refreshCount)
	sc.Step(`^"([^"]*)" disconnects "([^"]*)"$`, w.disconnects)
	sc.Step(`^"([^"]*)" has no "([^"]*)" entry$`, w.hasNoEntry)
}

func TestConnectionLifecycleFeature(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "connection-lifecycle",
		ScenarioInitializer: initializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("lifecycle feature scenarios failed")
	}
}
