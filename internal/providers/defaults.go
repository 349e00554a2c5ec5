package providers

import "github.com/custodia-labs/sercha-connect/internal/core/domain"

// Defaults returns the built-in provider table without client credentials.
// Each call returns fresh copies.
func Defaults() map[domain.Platform]*domain.ProviderConfig {
	google := func() map[string]string {
		return map[string]string{
			"access_type":            "offline",
			"prompt":                 "consent",
			"include_granted_scopes": "true",
		}
	}

	return map[domain.Platform]*domain.ProviderConfig{
		domain.PlatformSpotify: {
			DisplayName: "Spotify",
			Category:    domain.CategoryMusic,
			AuthURL:     "https://accounts.spotify.com/authorize",
			TokenURL:    "https://accounts.spotify.com/api/token",
			APIBaseURL:  "https://api.spotify.com/v1",
			Scopes:      []string{"user-read-email", "user-top-read", "user-read-recently-played", "playlist-read-private"},
			AuthStyle:   domain.AuthStyleBasic,
			PKCEMethod:  domain.PKCES256,
		},
		domain.PlatformYouTube: {
			DisplayName:     "YouTube",
			Category:        domain.CategoryVideo,
			AuthURL:         "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:        "https://oauth2.googleapis.com/token",
			RevokeURL:       "https://oauth2.googleapis.com/revoke",
			APIBaseURL:      "https://www.googleapis.com/youtube/v3",
			Scopes:          []string{"https://www.googleapis.com/auth/youtube.readonly"},
			AuthStyle:       domain.AuthStyleBody,
			PKCEMethod:      domain.PKCES256,
			ExtraAuthParams: google(),
		},
		domain.PlatformTwitch: {
			DisplayName: "Twitch",
			Category:    domain.CategoryVideo,
			AuthURL:     "https://id.twitch.tv/oauth2/authorize",
			TokenURL:    "https://id.twitch.tv/oauth2/token",
			RevokeURL:   "https://id.twitch.tv/oauth2/revoke",
			APIBaseURL:  "https://api.twitch.tv/helix",
			Scopes:      []string{"user:read:email", "user:read:follows"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformStrava: {
			DisplayName:     "Strava",
			Category:        domain.CategoryFitness,
			AuthURL:         "https://www.strava.com/oauth/authorize",
			TokenURL:        "https://www.strava.com/oauth/token",
			RevokeURL:       "https://www.strava.com/oauth/deauthorize",
			APIBaseURL:      "https://www.strava.com/api/v3",
			Scopes:          []string{"read", "activity:read_all"},
			ScopeSeparator:  ",",
			AuthStyle:       domain.AuthStyleBody,
			ExtraAuthParams: map[string]string{"approval_prompt": "auto"},
		},
		domain.PlatformFitbit: {
			DisplayName: "Fitbit",
			Category:    domain.CategoryFitness,
			AuthURL:     "https://www.fitbit.com/oauth2/authorize",
			TokenURL:    "https://api.fitbit.com/oauth2/token",
			RevokeURL:   "https://api.fitbit.com/oauth2/revoke",
			APIBaseURL:  "https://api.fitbit.com",
			Scopes:      []string{"activity", "heartrate", "sleep", "profile"},
			AuthStyle:   domain.AuthStyleBasic,
			PKCEMethod:  domain.PKCES256,
			RateLimit:   2,
		},
		domain.PlatformWhoop: {
			DisplayName: "WHOOP",
			Category:    domain.CategoryFitness,
			AuthURL:     "https://api.prod.whoop.com/oauth/oauth2/auth",
			TokenURL:    "https://api.prod.whoop.com/oauth/oauth2/token",
			APIBaseURL:  "https://api.prod.whoop.com/developer",
			Scopes:      []string{"offline", "read:recovery", "read:sleep", "read:workout", "read:profile"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformOura: {
			DisplayName: "Oura",
			Category:    domain.CategoryFitness,
			AuthURL:     "https://cloud.ouraring.com/oauth/authorize",
			TokenURL:    "https://api.ouraring.com/oauth/token",
			APIBaseURL:  "https://api.ouraring.com/v2",
			Scopes:      []string{"personal", "daily", "heartrate", "workout"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformGitHub: {
			DisplayName: "GitHub",
			Category:    domain.CategoryProfessional,
			AuthURL:     "https://github.com/login/oauth/authorize",
			TokenURL:    "https://github.com/login/oauth/access_token",
			APIBaseURL:  "https://api.github.com",
			Scopes:      []string{"read:user", "user:email"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformLinkedIn: {
			DisplayName: "LinkedIn",
			Category:    domain.CategoryProfessional,
			AuthURL:     "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:    "https://www.linkedin.com/oauth/v2/accessToken",
			APIBaseURL:  "https://api.linkedin.com/v2",
			Scopes:      []string{"openid", "profile", "email"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformMicrosoft: {
			DisplayName: "Microsoft",
			Category:    domain.CategoryProfessional,
			AuthURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
			TokenURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
			APIBaseURL:  "https://graph.microsoft.com/v1.0",
			Scopes:      []string{"offline_access", "User.Read", "Calendars.Read"},
			AuthStyle:   domain.AuthStyleBody,
			PKCEMethod:  domain.PKCES256,
		},
		domain.PlatformDiscord: {
			DisplayName: "Discord",
			Category:    domain.CategoryCommunication,
			AuthURL:     "https://discord.com/oauth2/authorize",
			TokenURL:    "https://discord.com/api/oauth2/token",
			RevokeURL:   "https://discord.com/api/oauth2/token/revoke",
			APIBaseURL:  "https://discord.com/api/v10",
			Scopes:      []string{"identify", "guilds"},
			AuthStyle:   domain.AuthStyleBody,
		},
		domain.PlatformSlack: {
			DisplayName:    "Slack",
			Category:       domain.CategoryCommunication,
			AuthURL:        "https://slack.com/oauth/v2/authorize",
			TokenURL:       "https://slack.com/api/oauth.v2.access",
			RevokeURL:      "https://slack.com/api/auth.revoke",
			APIBaseURL:     "https://slack.com/api",
			Scopes:         []string{"channels:history", "users:read"},
			ScopeSeparator: ",",
			ScopeParam:     "user_scope",
			AuthStyle:      domain.AuthStyleBody,
			NestedTokenKey: "authed_user",
		},
		domain.PlatformReddit: {
			DisplayName:     "Reddit",
			Category:        domain.CategoryCommunication,
			AuthURL:         "https://www.reddit.com/api/v1/authorize",
			TokenURL:        "https://www.reddit.com/api/v1/access_token",
			RevokeURL:       "https://www.reddit.com/api/v1/revoke_token",
			APIBaseURL:      "https://oauth.reddit.com",
			Scopes:          []string{"identity", "history", "read"},
			AuthStyle:       domain.AuthStyleBasic,
			ExtraAuthParams: map[string]string{"duration": "permanent"},
			RateLimit:       1,
		},
		domain.PlatformTwitter: {
			DisplayName: "X (Twitter)",
			Category:    domain.CategoryCommunication,
			AuthURL:     "https://twitter.com/i/oauth2/authorize",
			TokenURL:    "https://api.twitter.com/2/oauth2/token",
			RevokeURL:   "https://api.twitter.com/2/oauth2/revoke",
			APIBaseURL:  "https://api.twitter.com/2",
			Scopes:      []string{"tweet.read", "users.read", "offline.access"},
			AuthStyle:   domain.AuthStyleBasic,
			PKCEMethod:  domain.PKCES256,
		},
		domain.PlatformNotion: {
			DisplayName:     "Notion",
			Category:        domain.CategoryProductivity,
			AuthURL:         "https://api.notion.com/v1/oauth/authorize",
			TokenURL:        "https://api.notion.com/v1/oauth/token",
			APIBaseURL:      "https://api.notion.com/v1",
			AuthStyle:       domain.AuthStyleJSON,
			ExtraAuthParams: map[string]string{"owner": "user"},
		},
	}
}
