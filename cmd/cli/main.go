package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"meetpulse/app/database"
)

var (
	apiBaseURL string
	authToken  string
)

type ResponseError struct {
	Message string `json:"error"`
}

var apiServiceBase = func() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL).
		SetHeader("Accept", "application/json").
		SetAuthToken(authToken).
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				return fmt.Errorf("%s", resp.Error().(*ResponseError).Message)
			}

			return nil
		})
}

var rootCmd = &cobra.Command{
	Use:   "meetpulse",
	Short: "MeetPulse CLI",
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Run: func(cmd *cobra.Command, args []string) {
		type userListResponse struct {
			PendingCount int64 `json:"pending_count"`
			Users        []struct {
				database.User
				Meetings []string `json:"meetings"`
			} `json:"users"`
		}

		resp, err := apiServiceBase().R().
			SetResult(&userListResponse{}).
			Get("/admin/users")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		result := resp.Result().(*userListResponse)
		fmt.Println("Pending approvals:", result.PendingCount)
		for _, u := range result.Users {
			name := "-"
			if u.Name != nil {
				name = *u.Name
			}
			fmt.Printf("%s  %-30s  %-20s  approved=%-5t admin=%t\n",
				u.ID, u.Email, name, u.Approved, u.Administrator)
		}
	},
}

var userApproveCmd = &cobra.Command{
	Use:   "approve <user_id>",
	Short: "Approve a pending user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Post(fmt.Sprintf("/admin/users/%s/approve", args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		user := resp.Result().(*database.User)
		fmt.Println("Approved:", user.Email)
	},
}

var userToggleAdminCmd = &cobra.Command{
	Use:   "toggle-admin <user_id>",
	Short: "Grant or revoke administrator",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&database.User{}).
			Post(fmt.Sprintf("/admin/users/%s/toggle-admin", args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		user := resp.Result().(*database.User)
		fmt.Printf("%s admin=%t\n", user.Email, user.Administrator)
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user_id>",
	Short: "Delete a user and their content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := apiServiceBase().R().
			Delete(fmt.Sprintf("/admin/users/%s", args[0]))

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("Deleted:", args[0])
	},
}

var meetingCmd = &cobra.Command{
	Use:   "meeting",
	Short: "Manage meetings",
}

var meetingCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new meeting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		description, _ := cmd.Flags().GetString("description")

		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"title":       args[0],
				"description": description,
			}).
			SetResult(&database.Meeting{}).
			Post("/meetings")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		meeting := resp.Result().(*database.Meeting)
		fmt.Println("Meeting ID:", meeting.ID)
		fmt.Println("Title     :", meeting.Title)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "http://localhost:3000/api", "API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("MEETPULSE_TOKEN"), "Admin session token")

	meetingCreateCmd.Flags().String("description", "", "Meeting description")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userApproveCmd)
	userCmd.AddCommand(userToggleAdminCmd)
	userCmd.AddCommand(userDeleteCmd)

	meetingCmd.AddCommand(meetingCreateCmd)

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(meetingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
