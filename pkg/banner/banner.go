package banner

import "fmt"

const banner = `
████████╗███████╗ █████╗ ███╗   ███╗███████╗███████╗███████╗██████╗
╚══██╔══╝██╔════╝██╔══██╗████╗ ████║██╔════╝██╔════╝██╔════╝██╔══██╗
   ██║   █████╗  ███████║██╔████╔██║█████╗  █████╗  █████╗  ██║  ██║
   ██║   ██╔══╝  ██╔══██║██║╚██╔╝██║██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║
   ██║   ███████╗██║  ██║██║ ╚═╝ ██║██║     ███████╗███████╗██████╔╝
   ╚═╝   ╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝     ╚══════╝╚══════╝╚═════╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET    /v1/chat?entityType=<t>&entityId=<id>  - list a conversation")
	fmt.Println("POST   /v1/chat                               - send a message")
	fmt.Println("POST   /v1/chat/mark-read                     - mark a scope read")
	fmt.Println("POST   /v1/chat/pin                           - pin a message (owner)")
	fmt.Println("DELETE /v1/chat/<messageId>                   - delete a message (owner)")
	fmt.Println("GET    /v1/mentions?q=<query>&trigger=@|#     - autocomplete candidates")
	fmt.Println("\n== Production? ================================================")
	fmt.Println("Set a durable storage path (--db)")
	fmt.Println("Configure API keys and signing secrets before exposing the port")
}
