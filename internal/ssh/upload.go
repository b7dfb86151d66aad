package ssh

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/sftp"
)

// Upload copies a local file to remotePath over SFTP and marks it
// executable by the owner. remotePath is always a Unix path.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upload %s: %w", remotePath, err)
	}
	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer local.Close()

	sftpClient, err := sftp.NewClient(c.ssh, sftp.UseConcurrentWrites(true))
	if err != nil {
		return fmt.Errorf("sftp client to %s: %w", c.host, err)
	}
	defer sftpClient.Close()

	// Closing the client fails any in-flight request on cancellation.
	stop := context.AfterFunc(ctx, func() { sftpClient.Close() })
	defer func() {
		if !stop() && err != nil {
			err = fmt.Errorf("upload %s: %w", remotePath, ctx.Err())
		}
	}()

	remote, err := sftpClient.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return fmt.Errorf("create remote file %s: %w", remotePath, err)
	}

	_, err = remote.ReadFrom(local)
	if closeErr := remote.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("copy to %s: %w", remotePath, err)
	}

	if err := sftpClient.Chmod(remotePath, 0o700); err != nil {
		return fmt.Errorf("chmod %s: %w", remotePath, err)
	}
	return nil
}
